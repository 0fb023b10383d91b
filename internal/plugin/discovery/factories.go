// Package discovery locates plugin candidates: manifest files on disk, a
// git-backed plugin registry, and a filesystem watcher for hot discovery.
// Discovery only produces descriptors; the plugin manager decides what to
// load.
package discovery

import (
	"fmt"
	"sort"
	"sync"

	"github.com/burdettadam/marty-microservices-framework-sub004/internal/plugin"
)

// Table maps module/class identifiers from plugin manifests to registered
// plugin constructors. Plugins compiled into the binary register themselves
// here; manifests then bind to them by identifier.
type Table struct {
	mu        sync.RWMutex
	factories map[string]plugin.Factory
}

// NewTable creates an empty factory table.
func NewTable() *Table {
	return &Table{factories: make(map[string]plugin.Factory)}
}

// Register binds a constructor to a module/class identifier pair.
// Registering the same pair twice is an error, so two built-in plugins can
// never silently shadow each other.
func (t *Table) Register(moduleID, classID string, factory plugin.Factory) error {
	if factory == nil {
		return fmt.Errorf("nil factory for %s.%s", moduleID, classID)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	key := factoryKey(moduleID, classID)
	if _, exists := t.factories[key]; exists {
		return fmt.Errorf("factory already registered for %s", key)
	}
	t.factories[key] = factory
	return nil
}

// Resolve returns the constructor bound to a module/class pair, or nil when
// none is registered.
func (t *Table) Resolve(moduleID, classID string) plugin.Factory {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.factories[factoryKey(moduleID, classID)]
}

// Names returns the registered identifiers, sorted.
func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]string, 0, len(t.factories))
	for key := range t.factories {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func factoryKey(moduleID, classID string) string {
	return moduleID + "." + classID
}
