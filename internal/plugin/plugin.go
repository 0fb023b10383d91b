// Package plugin implements the plugin orchestration core: metadata and
// lifecycle model, dependency resolution, capability-based registration and
// the manager that drives discovery, load, initialize, start, stop and
// unload in dependency order.
package plugin

import (
	"context"
	"fmt"
)

// Plugin is the contract every managed plugin implements. Lifecycle methods
// are called by the Manager only, in strict order.
type Plugin interface {
	// Metadata returns the plugin's identity and declarations.
	Metadata() Metadata

	// Load prepares plugin code (Unloaded -> Loaded).
	Load(ctx context.Context) error

	// Initialize receives the plugin context (Loaded -> Initialized).
	Initialize(ctx context.Context, pctx *Context) error

	// Start activates the plugin (Initialized -> Started).
	Start(ctx context.Context) error

	// Stop deactivates the plugin (-> Stopped). Called unconditionally
	// during teardown.
	Stop(ctx context.Context) error

	// Unload releases plugin resources before removal from the manager.
	Unload(ctx context.Context) error
}

// Metadata describes a plugin's identity, dependencies and capabilities.
type Metadata struct {
	// Name is the unique plugin identifier within a manager.
	Name string `yaml:"name" json:"name"`

	// Version is the semantic version (e.g. "v1.2.0").
	Version string `yaml:"version" json:"version"`

	// Description is a human-readable summary.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Author is the plugin creator or maintainer.
	Author string `yaml:"author,omitempty" json:"author,omitempty"`

	// Dependencies lists plugin names this plugin requires.
	Dependencies []string `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`

	// Provides lists capability tags this plugin contributes.
	Provides []string `yaml:"provides,omitempty" json:"provides,omitempty"`

	// ConfigSchema optionally documents expected plugin configuration keys
	// and their descriptions.
	ConfigSchema map[string]string `yaml:"config_schema,omitempty" json:"config_schema,omitempty"`
}

// String returns a human-readable representation of the metadata.
func (m Metadata) String() string {
	return fmt.Sprintf("%s@%s", m.Name, m.Version)
}

// Validate checks if the metadata is usable.
func (m Metadata) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("plugin name is required")
	}
	if m.Version == "" {
		return fmt.Errorf("plugin version is required")
	}
	for _, dep := range m.Dependencies {
		if dep == m.Name {
			return fmt.Errorf("plugin %s cannot depend on itself", m.Name)
		}
	}
	return nil
}

// Base provides no-op lifecycle implementations. Plugins embed Base and
// override only the phases they care about.
type Base struct{}

func (Base) Load(context.Context) error                 { return nil }
func (Base) Initialize(context.Context, *Context) error { return nil }
func (Base) Start(context.Context) error                { return nil }
func (Base) Stop(context.Context) error                 { return nil }
func (Base) Unload(context.Context) error               { return nil }

// Info is the introspection view of a managed plugin.
type Info struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Description  string   `json:"description,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
	Provides     []string `json:"provides,omitempty"`
	State        string   `json:"state"`
	LastError    string   `json:"last_error,omitempty"`
}
