package plugin

import "context"

// Kind identifies where a plugin descriptor came from.
type Kind string

const (
	// KindFile - a single manifest file.
	KindFile Kind = "file"

	// KindPackage - a directory containing a manifest.
	KindPackage Kind = "package"

	// KindEntryPoint - an external registry entry.
	KindEntryPoint Kind = "entry_point"
)

// Factory constructs a plugin instance.
type Factory func() Plugin

// Descriptor identifies a discovered plugin candidate. ModuleID and ClassID
// name the factory table entry the candidate maps to; Factory is resolved by
// discovery and nil when no registered constructor matched.
type Descriptor struct {
	Kind     Kind
	Location string
	ModuleID string
	ClassID  string
	Metadata Metadata
	Factory  Factory
}

// Discoverer locates candidate plugin descriptors from filesystem paths or
// an external registry. Implementations live in the discovery package; the
// manager depends only on this interface.
type Discoverer interface {
	Discover(ctx context.Context, paths []string) ([]Descriptor, error)
}

// TransitionJournal records plugin lifecycle transitions for audit purposes.
// Implementations must tolerate high-frequency appends; failures are logged
// by the manager and never block orchestration.
type TransitionJournal interface {
	Record(ctx context.Context, plugin, fromState, toState string, cause error) error
}
