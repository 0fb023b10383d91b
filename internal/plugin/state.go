package plugin

// State represents the lifecycle state of a plugin instance. Transitions are
// strictly ordered: a plugin can never reach Started without passing through
// Loaded and Initialized.
type State int

const (
	// StateUnloaded - plugin is known but its code has not been loaded.
	StateUnloaded State = iota

	// StateLoaded - plugin code is loaded but not initialized.
	StateLoaded

	// StateInitialized - plugin received its context and is ready to start.
	StateInitialized

	// StateStarted - plugin is running and registered into capability registries.
	StateStarted

	// StateStopped - plugin was stopped and unregistered.
	StateStopped

	// StateError - plugin failed; requires explicit unload/reload to recover.
	StateError
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoaded:
		return "loaded"
	case StateInitialized:
		return "initialized"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
