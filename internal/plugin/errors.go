package plugin

import (
	"errors"
	"fmt"
)

// Category classifies plugin errors for propagation policy decisions.
type Category string

const (
	// CategoryLoad covers missing plugin factories and instantiation failures.
	CategoryLoad Category = "load"

	// CategoryState covers operations invalid for the current lifecycle state.
	CategoryState Category = "state"

	// CategoryDependency covers missing dependencies and cycles.
	CategoryDependency Category = "dependency"

	// CategoryConfiguration covers invalid plugin configuration.
	CategoryConfiguration Category = "configuration"

	// CategoryDiscovery covers lookup and filesystem failures.
	CategoryDiscovery Category = "discovery"

	// CategoryIsolation covers resource ceilings and guard failures.
	CategoryIsolation Category = "isolation"

	// CategoryLifecycle covers initialize/start failures surfaced from the
	// plugin's own code.
	CategoryLifecycle Category = "lifecycle"
)

// Error is the structured error type for the plugin orchestration core.
type Error struct {
	Category Category
	Plugin   string
	Message  string
	Cause    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	prefix := string(e.Category)
	if e.Plugin != "" {
		prefix = fmt.Sprintf("%s (plugin %s)", e.Category, e.Plugin)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// LoadError reports that no valid plugin factory was found or instantiation failed.
func LoadError(plugin, message string, cause error) *Error {
	return &Error{Category: CategoryLoad, Plugin: plugin, Message: message, Cause: cause}
}

// InvalidStateError reports an operation invalid for the plugin's current state.
func InvalidStateError(plugin string, current State, operation string) *Error {
	return &Error{
		Category: CategoryState,
		Plugin:   plugin,
		Message:  fmt.Sprintf("cannot %s in state %s", operation, current),
	}
}

// DependencyError reports a missing dependency or a cycle.
func DependencyError(plugin, message string) *Error {
	return &Error{Category: CategoryDependency, Plugin: plugin, Message: message}
}

// ConfigurationError reports invalid plugin configuration.
func ConfigurationError(plugin, message string, cause error) *Error {
	return &Error{Category: CategoryConfiguration, Plugin: plugin, Message: message, Cause: cause}
}

// DiscoveryError reports a lookup or filesystem failure during discovery.
func DiscoveryError(message string, cause error) *Error {
	return &Error{Category: CategoryDiscovery, Message: message, Cause: cause}
}

// IsolationError reports a resource ceiling or guard failure.
func IsolationError(plugin string, cause error) *Error {
	return &Error{Category: CategoryIsolation, Plugin: plugin, Message: "isolated execution failed", Cause: cause}
}

// LifecycleError wraps a failure raised by the plugin's own initialize/start code.
func LifecycleError(plugin, phase string, cause error) *Error {
	return &Error{Category: CategoryLifecycle, Plugin: plugin, Message: phase + " failed", Cause: cause}
}

// IsCategory reports whether err (or anything it wraps) is a plugin error of
// the given category.
func IsCategory(err error, c Category) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Category == c
	}
	return false
}
