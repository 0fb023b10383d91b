package extension

// Type determines the dispatch semantics of an extension point for its whole
// lifetime. It is fixed when the point is registered.
type Type string

const (
	// TypeFilter runs handlers sequentially by ascending priority; each
	// handler transforms the running value.
	TypeFilter Type = "filter"

	// TypeAction runs handlers concurrently and collects their results in
	// registration order, excluding failures.
	TypeAction Type = "action"

	// TypeHook runs handlers concurrently as a pure notification; results
	// are discarded.
	TypeHook Type = "hook"

	// TypeProvider runs handlers like an action and additionally drops
	// nil results, aggregating optional contributions.
	TypeProvider Type = "provider"
)

// IsValid returns true if the type is recognized.
func (t Type) IsValid() bool {
	switch t {
	case TypeFilter, TypeAction, TypeHook, TypeProvider:
		return true
	default:
		return false
	}
}

// Point declares a named, typed hook in the core that plugin-supplied
// handlers can tap into.
type Point struct {
	// Name is the unique extension point identifier (e.g. "request.filter").
	Name string

	// Type fixes the dispatch semantics.
	Type Type

	// Description is a human-readable summary of the point's purpose.
	Description string

	// Contract documents the parameter/return expectations for handlers.
	Contract string

	// Required marks points the core depends on having at least one handler.
	Required bool
}

// Info is the introspection view of a registered extension point.
type Info struct {
	Name         string `json:"name"`
	Type         Type   `json:"type"`
	Description  string `json:"description,omitempty"`
	Contract     string `json:"contract,omitempty"`
	Required     bool   `json:"required"`
	HandlerCount int    `json:"handler_count"`
}
