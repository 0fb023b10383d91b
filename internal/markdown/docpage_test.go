package markdown

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burdettadam/marty-microservices-framework-sub004/internal/plugin"
)

func TestBuildPageFromMetadata(t *testing.T) {
	page := BuildPage(plugin.Descriptor{
		Kind:     plugin.KindPackage,
		Location: "/plugins/cache/plugin.yaml",
		Metadata: plugin.Metadata{
			Name:         "cache",
			Version:      "v1.2.0",
			Description:  "In-memory cache with TTL eviction.",
			Author:       "platform team",
			Dependencies: []string{"metrics"},
			Provides:     []string{"cache"},
			ConfigSchema: map[string]string{
				"ttl":      "entry time to live",
				"max_size": "maximum entry count",
			},
		},
	})

	assert.Equal(t, "cache", page.Plugin)
	assert.Contains(t, page.Markdown, "# cache")
	assert.Contains(t, page.Markdown, "In-memory cache with TTL eviction.")
	assert.Contains(t, page.Markdown, "**Version:** v1.2.0")
	assert.Contains(t, page.Markdown, "**Depends on:** metrics")
	assert.Contains(t, page.Markdown, "| `max_size` | maximum entry count |")
	// Schema keys are sorted.
	assert.Less(t,
		strings.Index(page.Markdown, "max_size"),
		strings.Index(page.Markdown, "| `ttl`"))
}

func TestBuildPageIncludesReadme(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"),
		[]byte("Detailed usage notes."), 0o644))

	page := BuildPage(plugin.Descriptor{
		Location: filepath.Join(dir, "plugin.yaml"),
		Metadata: plugin.Metadata{Name: "cache", Version: "v1.0.0"},
	})

	assert.Contains(t, page.Markdown, "## Documentation")
	assert.Contains(t, page.Markdown, "Detailed usage notes.")
}

func TestRenderHTML(t *testing.T) {
	page := BuildPage(plugin.Descriptor{
		Metadata: plugin.Metadata{
			Name:         "cache",
			Version:      "v1.0.0",
			ConfigSchema: map[string]string{"ttl": "entry time to live"},
		},
	})

	html, err := page.RenderHTML()
	require.NoError(t, err)
	assert.Contains(t, html, "<h1>cache</h1>")
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "entry time to live")
}
