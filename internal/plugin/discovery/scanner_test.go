package discovery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burdettadam/marty-microservices-framework-sub004/internal/plugin"
)

type nullPlugin struct {
	plugin.Base
	name string
}

func (p *nullPlugin) Metadata() plugin.Metadata {
	return plugin.Metadata{Name: p.name, Version: "v1.0.0"}
}

func writeManifest(t *testing.T, dir, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, ManifestName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestTableRegisterAndResolve(t *testing.T) {
	table := NewTable()

	require.NoError(t, table.Register("mmf.cache", "CachePlugin", func() plugin.Plugin {
		return &nullPlugin{name: "cache"}
	}))

	// Duplicate registration is rejected.
	err := table.Register("mmf.cache", "CachePlugin", func() plugin.Plugin { return nil })
	require.Error(t, err)

	// Nil factories are rejected.
	require.Error(t, table.Register("mmf.x", "X", nil))

	assert.NotNil(t, table.Resolve("mmf.cache", "CachePlugin"))
	assert.Nil(t, table.Resolve("mmf.cache", "Unknown"))
	assert.Equal(t, []string{"mmf.cache.CachePlugin"}, table.Names())
}

func TestScannerDiscoversPackages(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, filepath.Join(root, "cache"), `
name: cache
version: v1.0.0
description: in-memory cache
module: mmf.cache
class: CachePlugin
`)
	writeManifest(t, filepath.Join(root, "auth"), `
name: auth
version: v2.1.0
dependencies: [cache]
module: mmf.auth
class: AuthPlugin
`)

	table := NewTable()
	require.NoError(t, table.Register("mmf.cache", "CachePlugin", func() plugin.Plugin {
		return &nullPlugin{name: "cache"}
	}))

	descriptors, err := NewScanner(table).Discover(context.Background(), []string{root})
	require.NoError(t, err)
	require.Len(t, descriptors, 2)

	byName := make(map[string]plugin.Descriptor)
	for _, d := range descriptors {
		byName[d.Metadata.Name] = d
	}

	cache := byName["cache"]
	assert.Equal(t, plugin.KindPackage, cache.Kind)
	assert.Equal(t, "mmf.cache", cache.ModuleID)
	assert.NotNil(t, cache.Factory, "registered module/class resolves a factory")

	auth := byName["auth"]
	assert.Equal(t, []string{"cache"}, auth.Metadata.Dependencies)
	assert.Nil(t, auth.Factory, "unregistered module/class leaves factory nil")
}

func TestScannerDiscoversSingleManifestFile(t *testing.T) {
	path := writeManifest(t, t.TempDir(), `
name: solo
version: v0.1.0
module: mmf.solo
class: SoloPlugin
`)

	descriptors, err := NewScanner(NewTable()).Discover(context.Background(), []string{path})
	require.NoError(t, err)
	require.Len(t, descriptors, 1)
	assert.Equal(t, plugin.KindFile, descriptors[0].Kind)
	assert.Equal(t, path, descriptors[0].Location)
}

func TestScannerSkipsInvalidManifests(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, filepath.Join(root, "good"), `
name: good
version: v1.0.0
module: mmf.good
class: GoodPlugin
`)
	// Missing version.
	writeManifest(t, filepath.Join(root, "noversion"), `
name: noversion
module: mmf.bad
class: BadPlugin
`)
	// Missing module binding.
	writeManifest(t, filepath.Join(root, "unbound"), `
name: unbound
version: v1.0.0
`)
	// Unparseable.
	writeManifest(t, filepath.Join(root, "garbled"), `{{{not yaml`)

	descriptors, err := NewScanner(NewTable()).Discover(context.Background(), []string{root})
	require.NoError(t, err)
	require.Len(t, descriptors, 1)
	assert.Equal(t, "good", descriptors[0].Metadata.Name)
}

func TestScannerKeepsFirstOnDuplicateNames(t *testing.T) {
	root := t.TempDir()
	manifest := `
name: dup
version: v1.0.0
module: mmf.dup
class: DupPlugin
`
	writeManifest(t, filepath.Join(root, "a"), manifest)
	writeManifest(t, filepath.Join(root, "b"), manifest)

	descriptors, err := NewScanner(NewTable()).Discover(context.Background(), []string{root})
	require.NoError(t, err)
	require.Len(t, descriptors, 1)
	assert.Equal(t, filepath.Join(root, "a", ManifestName), descriptors[0].Location)
}

func TestScannerSkipsMissingPaths(t *testing.T) {
	descriptors, err := NewScanner(NewTable()).Discover(context.Background(),
		[]string{"/nonexistent/plugins"})
	require.NoError(t, err)
	assert.Empty(t, descriptors)
}

type fakeSource struct {
	descriptors []plugin.Descriptor
	err         error
}

func (f *fakeSource) Discover(context.Context, []string) ([]plugin.Descriptor, error) {
	return f.descriptors, f.err
}

func TestMultiMergesAndDeduplicates(t *testing.T) {
	local := &fakeSource{descriptors: []plugin.Descriptor{
		{Metadata: plugin.Metadata{Name: "cache"}, Location: "local/cache"},
	}}
	remote := &fakeSource{descriptors: []plugin.Descriptor{
		{Metadata: plugin.Metadata{Name: "cache"}, Location: "remote/cache"},
		{Metadata: plugin.Metadata{Name: "auth"}, Location: "remote/auth"},
	}}
	broken := &fakeSource{err: errors.New("registry unreachable")}

	descriptors, err := NewMulti(local, broken, remote).Discover(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, descriptors, 2)
	assert.Equal(t, "local/cache", descriptors[0].Location, "earlier source wins conflicts")
	assert.Equal(t, "auth", descriptors[1].Metadata.Name)
}
