package discovery

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/burdettadam/marty-microservices-framework-sub004/internal/plugin"
)

// ManifestName is the file name a plugin package directory must contain.
const ManifestName = "plugin.yaml"

// Manifest is the on-disk plugin declaration. Module and Class bind the
// manifest to a constructor in the factory table.
type Manifest struct {
	plugin.Metadata `yaml:",inline"`

	Module string `yaml:"module"`
	Class  string `yaml:"class"`
}

// readManifest parses and validates one manifest file.
func readManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("reading manifest %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, fmt.Errorf("invalid manifest %s: %w", path, err)
	}
	if m.Module == "" || m.Class == "" {
		return Manifest{}, fmt.Errorf("manifest %s: module and class are required", path)
	}
	return m, nil
}
