package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/burdettadam/marty-microservices-framework-sub004/internal/config"
	"github.com/burdettadam/marty-microservices-framework-sub004/internal/plugin/discovery"
)

func TestLimitsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Isolation.MaxThreads = 2
	cfg.Isolation.MaxCPUTime = 5 * time.Second
	cfg.Isolation.BlockedNamespaces = []string{"os.exec"}

	limits := limitsFromConfig(cfg)
	assert.Equal(t, 2, limits.MaxThreads)
	assert.Equal(t, 5*time.Second, limits.MaxCPUTime)
	assert.Equal(t, []string{"os.exec"}, limits.BlockedNamespaces)
	// Unset ceilings keep the defaults.
	assert.Positive(t, limits.MaxMemoryBytes)
}

func TestNewDiscovererUsesRegistryOnlyWhenConfigured(t *testing.T) {
	table := discovery.NewTable()

	cfg := config.Default()
	d := newDiscoverer(cfg, table)
	_, isScanner := d.(*discovery.Scanner)
	assert.True(t, isScanner, "no registry URL means plain scanner")

	cfg.Registry.URL = "https://example.com/registry.git"
	d = newDiscoverer(cfg, table)
	_, isMulti := d.(*discovery.Multi)
	assert.True(t, isMulti, "registry URL adds the git source")
}
