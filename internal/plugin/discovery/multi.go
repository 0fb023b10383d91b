package discovery

import (
	"context"
	"log/slog"

	"github.com/burdettadam/marty-microservices-framework-sub004/internal/observability"
	"github.com/burdettadam/marty-microservices-framework-sub004/internal/plugin"
)

// Multi merges the results of several discoverers in order, keeping the
// first descriptor per plugin name. A failing source is logged and skipped
// so the local scanner still works when the remote registry is down.
type Multi struct {
	sources []plugin.Discoverer
}

// NewMulti combines discoverers; earlier sources win name conflicts.
func NewMulti(sources ...plugin.Discoverer) *Multi {
	return &Multi{sources: sources}
}

// Discover runs every source and merges the descriptor sets.
func (m *Multi) Discover(ctx context.Context, paths []string) ([]plugin.Descriptor, error) {
	var merged []plugin.Descriptor
	seen := make(map[string]bool)

	for _, source := range m.sources {
		descriptors, err := source.Discover(ctx, paths)
		if err != nil {
			observability.WarnContext(ctx, "discovery source failed, continuing with remaining sources",
				slog.Any("error", err))
			continue
		}
		for _, desc := range descriptors {
			if seen[desc.Metadata.Name] {
				observability.WarnContext(ctx, "duplicate plugin name across discovery sources, keeping first",
					slog.String("plugin", desc.Metadata.Name),
					slog.String("ignored", desc.Location))
				continue
			}
			seen[desc.Metadata.Name] = true
			merged = append(merged, desc)
		}
	}
	return merged, nil
}
