package config

import (
	"fmt"
	"os"
)

const starterConfig = `# mmf framework configuration
plugin_paths:
  - ./plugins

# registry:
#   url: https://example.com/plugin-registry.git
#   branch: main
#   cache_dir: .mmf/registry

isolation:
  enabled: true
  max_threads: 8
  max_file_handles: 64

metrics:
  enabled: false
  listen: ":9310"

events:
  nats:
    enabled: false
    # url: nats://localhost:4222
    subject: mmf.plugins.events

audit:
  enabled: false
  path: .mmf/audit.db

health:
  enabled: true
  default_interval: 30s

logging:
  level: info

# Per-plugin configuration, keyed by plugin name.
plugins: {}
`

// Init writes a starter configuration file. Existing files are preserved
// unless force is set.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
	}
	if err := os.WriteFile(path, []byte(starterConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	return nil
}
