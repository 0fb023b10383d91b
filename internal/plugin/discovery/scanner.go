package discovery

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/burdettadam/marty-microservices-framework-sub004/internal/observability"
	"github.com/burdettadam/marty-microservices-framework-sub004/internal/plugin"
)

// Scanner discovers plugin descriptors from manifest files on disk. It
// implements plugin.Discoverer. Per-path failures are logged and skipped so
// one broken manifest cannot take discovery down.
type Scanner struct {
	table *Table

	// kind overrides the descriptor kind, used by the git registry to mark
	// its results as entry points.
	kind plugin.Kind
}

// NewScanner creates a scanner resolving constructors through table.
func NewScanner(table *Table) *Scanner {
	return &Scanner{table: table}
}

// Discover walks the given paths and returns one descriptor per unique
// plugin name. A path may be a manifest file or a directory tree containing
// plugin.yaml files. When two manifests declare the same plugin name the
// first wins and the duplicate is logged.
func (s *Scanner) Discover(ctx context.Context, paths []string) ([]plugin.Descriptor, error) {
	var descriptors []plugin.Descriptor
	seen := make(map[string]string) // plugin name -> manifest location

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		info, err := os.Stat(path)
		if err != nil {
			observability.WarnContext(ctx, "skipping unreadable discovery path",
				slog.String("path", path),
				slog.Any("error", err))
			continue
		}

		if info.IsDir() {
			descriptors = s.scanDir(ctx, path, seen, descriptors)
			continue
		}
		if desc, ok := s.loadManifest(ctx, path, plugin.KindFile, seen); ok {
			descriptors = append(descriptors, desc)
		}
	}

	return descriptors, nil
}

func (s *Scanner) scanDir(ctx context.Context, root string, seen map[string]string, descriptors []plugin.Descriptor) []plugin.Descriptor {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			observability.WarnContext(ctx, "skipping unreadable directory entry",
				slog.String("path", path),
				slog.Any("error", err))
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if d.Name() != ManifestName {
			return nil
		}
		if desc, ok := s.loadManifest(ctx, path, plugin.KindPackage, seen); ok {
			descriptors = append(descriptors, desc)
		}
		return nil
	})
	if err != nil {
		observability.WarnContext(ctx, "directory scan aborted",
			slog.String("path", root),
			slog.Any("error", err))
	}
	return descriptors
}

func (s *Scanner) loadManifest(ctx context.Context, path string, kind plugin.Kind, seen map[string]string) (plugin.Descriptor, bool) {
	m, err := readManifest(path)
	if err != nil {
		observability.WarnContext(ctx, "skipping invalid plugin manifest",
			slog.String("path", path),
			slog.Any("error", err))
		return plugin.Descriptor{}, false
	}

	if first, dup := seen[m.Name]; dup {
		observability.WarnContext(ctx, "duplicate plugin name, keeping first discovered",
			slog.String("plugin", m.Name),
			slog.String("kept", first),
			slog.String("ignored", path))
		return plugin.Descriptor{}, false
	}
	seen[m.Name] = path

	if s.kind != "" {
		kind = s.kind
	}
	return plugin.Descriptor{
		Kind:     kind,
		Location: path,
		ModuleID: m.Module,
		ClassID:  m.Class,
		Metadata: m.Metadata,
		Factory:  s.table.Resolve(m.Module, m.Class),
	}, true
}
