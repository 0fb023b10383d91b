package plugin

import (
	"log/slog"

	"github.com/burdettadam/marty-microservices-framework-sub004/internal/config"
	"github.com/burdettadam/marty-microservices-framework-sub004/internal/eventbus"
	"github.com/burdettadam/marty-microservices-framework-sub004/internal/extension"
	"github.com/burdettadam/marty-microservices-framework-sub004/internal/isolation"
	"github.com/burdettadam/marty-microservices-framework-sub004/internal/metrics"
	"github.com/burdettadam/marty-microservices-framework-sub004/internal/registry"
)

// Context is the immutable bundle handed to a plugin at initialize time.
// Plugins interact with the framework exclusively through these references,
// never by reaching into the manager directly.
type Context struct {
	// Logger is a structured logger pre-scoped to the plugin.
	Logger *slog.Logger

	// Config is the global framework configuration view.
	Config *config.Config

	// Metrics records plugin observability data.
	Metrics metrics.Recorder

	// Events is the in-process event bus.
	Events *eventbus.Bus

	// Services is the service registry.
	Services *registry.Registry

	// Extensions is the extension point manager.
	Extensions *extension.Manager

	// Sandbox is the plugin's isolation sandbox (nil when isolation is
	// globally disabled).
	Sandbox *isolation.Sandbox

	// scoped is the plugin-scoped configuration map.
	scoped map[string]any
}

// NewContext builds a plugin context. The scoped map is the plugin's own
// configuration subtree.
func NewContext(
	logger *slog.Logger,
	cfg *config.Config,
	recorder metrics.Recorder,
	bus *eventbus.Bus,
	services *registry.Registry,
	extensions *extension.Manager,
	sandbox *isolation.Sandbox,
	scoped map[string]any,
) *Context {
	if scoped == nil {
		scoped = map[string]any{}
	}
	return &Context{
		Logger:     logger,
		Config:     cfg,
		Metrics:    recorder,
		Events:     bus,
		Services:   services,
		Extensions: extensions,
		Sandbox:    sandbox,
		scoped:     scoped,
	}
}

// ConfigValue resolves a dotted key against the plugin-scoped configuration
// map, returning def when absent.
func (c *Context) ConfigValue(key string, def any) any {
	return config.Lookup(c.scoped, key, def)
}

// ScopedConfig returns a copy of the plugin-scoped configuration map.
func (c *Context) ScopedConfig() map[string]any {
	out := make(map[string]any, len(c.scoped))
	for k, v := range c.scoped {
		out[k] = v
	}
	return out
}
