package isolation

import "time"

// ResourceLimits defines per-plugin resource ceilings. Memory and CPU
// ceilings are advisory counters; thread and file-handle ceilings are
// enforced on acquire.
type ResourceLimits struct {
	// MaxMemoryBytes is the advisory memory ceiling (0 = unlimited).
	MaxMemoryBytes int64

	// MaxCPUTime is the advisory cumulative CPU ceiling (0 = unlimited).
	MaxCPUTime time.Duration

	// MaxThreads is the maximum number of concurrently tracked threads.
	MaxThreads int

	// MaxFileHandles is the maximum number of concurrently open handles.
	MaxFileHandles int

	// AllowedNamespaces whitelists module namespaces a plugin may resolve.
	// Empty means everything not blocked is allowed.
	AllowedNamespaces []string

	// BlockedNamespaces blacklists module namespaces. Block wins over allow.
	BlockedNamespaces []string
}

// DefaultLimits returns sensible default limits.
func DefaultLimits() ResourceLimits {
	return ResourceLimits{
		MaxMemoryBytes: 64 * 1024 * 1024,
		MaxCPUTime:     30 * time.Second,
		MaxThreads:     8,
		MaxFileHandles: 64,
	}
}

// StrictLimits returns tighter limits for untrusted plugins.
func StrictLimits() ResourceLimits {
	return ResourceLimits{
		MaxMemoryBytes: 16 * 1024 * 1024,
		MaxCPUTime:     5 * time.Second,
		MaxThreads:     2,
		MaxFileHandles: 8,
		BlockedNamespaces: []string{
			"os/exec",
			"net",
			"unsafe",
		},
	}
}

// RelaxedLimits returns generous limits for trusted plugins.
func RelaxedLimits() ResourceLimits {
	return ResourceLimits{
		MaxMemoryBytes: 512 * 1024 * 1024,
		MaxCPUTime:     5 * time.Minute,
		MaxThreads:     64,
		MaxFileHandles: 512,
	}
}
