// Package config loads and validates the framework configuration that drives
// the plugin orchestration core: plugin search paths, isolation defaults,
// metrics exposition, event bridging and per-plugin configuration maps.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the framework configuration.
type Config struct {
	PluginPaths []string        `yaml:"plugin_paths"`
	Registry    RegistryConfig  `yaml:"registry"`
	Isolation   IsolationConfig `yaml:"isolation"`
	Metrics     MetricsConfig   `yaml:"metrics"`
	Events      EventsConfig    `yaml:"events"`
	Audit       AuditConfig     `yaml:"audit"`
	Health      HealthConfig    `yaml:"health"`
	Logging     LoggingConfig   `yaml:"logging"`

	// Plugins holds plugin-scoped configuration maps keyed by plugin name.
	Plugins map[string]map[string]any `yaml:"plugins,omitempty"`
}

// RegistryConfig configures remote plugin registry discovery.
type RegistryConfig struct {
	URL      string `yaml:"url,omitempty"`
	Branch   string `yaml:"branch,omitempty"`
	CacheDir string `yaml:"cache_dir,omitempty"`
}

// IsolationConfig configures best-effort plugin sandboxing.
type IsolationConfig struct {
	Enabled           bool          `yaml:"enabled"`
	MaxMemoryBytes    int64         `yaml:"max_memory_bytes,omitempty"`
	MaxCPUTime        time.Duration `yaml:"max_cpu_time,omitempty"`
	MaxThreads        int           `yaml:"max_threads,omitempty"`
	MaxFileHandles    int           `yaml:"max_file_handles,omitempty"`
	AllowedNamespaces []string      `yaml:"allowed_namespaces,omitempty"`
	BlockedNamespaces []string      `yaml:"blocked_namespaces,omitempty"`
}

// MetricsConfig configures Prometheus exposition.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen,omitempty"`
}

// EventsConfig configures the event bus and its optional NATS bridge.
type EventsConfig struct {
	NATS NATSConfig `yaml:"nats"`
}

// NATSConfig configures mirroring of bus events to a NATS subject.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// AuditConfig configures the lifecycle transition journal.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

// HealthConfig configures the periodic health monitor.
type HealthConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DefaultInterval time.Duration `yaml:"default_interval,omitempty"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // debug, info, warn, error
}

// Load loads configuration from the specified file.
func Load(configPath string) (*Config, error) {
	// Load .env files if present; process environment wins over file values.
	for _, envPath := range []string{".env", ".env.local"} {
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			break
		}
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a configuration populated with defaults.
func Default() *Config {
	return &Config{
		Registry: RegistryConfig{
			Branch:   "main",
			CacheDir: ".mmf/registry",
		},
		Isolation: IsolationConfig{
			Enabled:        true,
			MaxThreads:     8,
			MaxFileHandles: 64,
		},
		Metrics: MetricsConfig{
			Listen: ":9310",
		},
		Events: EventsConfig{
			NATS: NATSConfig{
				Subject: "mmf.plugins.events",
			},
		},
		Audit: AuditConfig{
			Path: ".mmf/audit.db",
		},
		Health: HealthConfig{
			Enabled:         true,
			DefaultInterval: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Plugins: map[string]map[string]any{},
	}
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}

	if c.Isolation.MaxThreads < 0 {
		return fmt.Errorf("isolation max_threads cannot be negative")
	}
	if c.Isolation.MaxFileHandles < 0 {
		return fmt.Errorf("isolation max_file_handles cannot be negative")
	}
	if c.Events.NATS.Enabled && c.Events.NATS.URL == "" {
		return fmt.Errorf("events.nats.url is required when the NATS bridge is enabled")
	}
	if c.Health.DefaultInterval < 0 {
		return fmt.Errorf("health default_interval cannot be negative")
	}
	return nil
}

// PluginConfig returns the configuration map scoped to a single plugin.
// The returned map is never nil.
func (c *Config) PluginConfig(name string) map[string]any {
	if c.Plugins == nil {
		return map[string]any{}
	}
	if m, ok := c.Plugins[name]; ok && m != nil {
		return m
	}
	return map[string]any{}
}
