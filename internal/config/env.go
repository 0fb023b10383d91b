package config

import (
	"os"
	"strconv"
	"strings"
)

// applyEnvOverrides overlays MMF_* environment variables on the loaded
// configuration. Environment values take precedence over file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MMF_PLUGIN_PATHS"); v != "" {
		cfg.PluginPaths = splitList(v)
	}
	if v := os.Getenv("MMF_REGISTRY_URL"); v != "" {
		cfg.Registry.URL = v
	}
	if v := os.Getenv("MMF_REGISTRY_BRANCH"); v != "" {
		cfg.Registry.Branch = v
	}
	if v := os.Getenv("MMF_ISOLATION_ENABLED"); v != "" {
		cfg.Isolation.Enabled = parseBool(v, cfg.Isolation.Enabled)
	}
	if v := os.Getenv("MMF_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v, cfg.Metrics.Enabled)
	}
	if v := os.Getenv("MMF_METRICS_LISTEN"); v != "" {
		cfg.Metrics.Listen = v
	}
	if v := os.Getenv("MMF_NATS_URL"); v != "" {
		cfg.Events.NATS.URL = v
		cfg.Events.NATS.Enabled = true
	}
	if v := os.Getenv("MMF_NATS_SUBJECT"); v != "" {
		cfg.Events.NATS.Subject = v
	}
	if v := os.Getenv("MMF_AUDIT_PATH"); v != "" {
		cfg.Audit.Path = v
		cfg.Audit.Enabled = true
	}
	if v := os.Getenv("MMF_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return b
}
