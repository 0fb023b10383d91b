// Package markdown builds and renders plugin documentation pages. A page is
// generated from plugin metadata plus an optional README shipped next to the
// plugin manifest, and can be emitted as Markdown or rendered to HTML.
package markdown

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/burdettadam/marty-microservices-framework-sub004/internal/plugin"
)

// readmeName is the optional doc file looked up next to a plugin manifest.
const readmeName = "README.md"

// DocPage is a plugin documentation page.
type DocPage struct {
	Plugin   string
	Markdown string
}

// BuildPage assembles the Markdown page for one plugin from its descriptor.
func BuildPage(desc plugin.Descriptor) DocPage {
	var b strings.Builder
	meta := desc.Metadata

	fmt.Fprintf(&b, "# %s\n\n", meta.Name)
	if meta.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", meta.Description)
	}

	fmt.Fprintf(&b, "- **Version:** %s\n", meta.Version)
	if meta.Author != "" {
		fmt.Fprintf(&b, "- **Author:** %s\n", meta.Author)
	}
	fmt.Fprintf(&b, "- **Source:** %s (%s)\n", desc.Location, desc.Kind)
	if len(meta.Dependencies) > 0 {
		fmt.Fprintf(&b, "- **Depends on:** %s\n", strings.Join(meta.Dependencies, ", "))
	}
	if len(meta.Provides) > 0 {
		fmt.Fprintf(&b, "- **Provides:** %s\n", strings.Join(meta.Provides, ", "))
	}
	b.WriteString("\n")

	if len(meta.ConfigSchema) > 0 {
		b.WriteString("## Configuration\n\n")
		b.WriteString("| Key | Description |\n|---|---|\n")
		keys := make([]string, 0, len(meta.ConfigSchema))
		for key := range meta.ConfigSchema {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(&b, "| `%s` | %s |\n", key, meta.ConfigSchema[key])
		}
		b.WriteString("\n")
	}

	if readme := loadReadme(desc); readme != "" {
		b.WriteString("## Documentation\n\n")
		b.WriteString(readme)
		if !strings.HasSuffix(readme, "\n") {
			b.WriteString("\n")
		}
	}

	return DocPage{Plugin: meta.Name, Markdown: b.String()}
}

// loadReadme returns the README shipped next to the manifest, if any.
func loadReadme(desc plugin.Descriptor) string {
	if desc.Location == "" {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(filepath.Dir(desc.Location), readmeName))
	if err != nil {
		return ""
	}
	return string(data)
}

// RenderHTML renders the page's Markdown to HTML with GFM tables enabled.
func (p DocPage) RenderHTML() (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))

	var buf bytes.Buffer
	if err := md.Convert([]byte(p.Markdown), &buf); err != nil {
		return "", fmt.Errorf("rendering doc page for %s: %w", p.Plugin, err)
	}
	return buf.String(), nil
}
