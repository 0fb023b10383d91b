package plugin

import "fmt"

// resolveOrder computes a topological order over the dependency graph using
// depth-first search with cycle detection. Plugins are visited in
// registration order, which makes the output deterministic for a fixed
// insertion order. Dependencies precede their dependents in the result.
func resolveOrder(names []string, deps map[string][]string) ([]string, error) {
	visited := make(map[string]bool, len(names))
	visiting := make(map[string]bool, len(names))
	order := make([]string, 0, len(names))

	known := make(map[string]bool, len(names))
	for _, name := range names {
		known[name] = true
	}

	var visit func(name string) error
	visit = func(name string) error {
		if visiting[name] {
			return DependencyError(name, fmt.Sprintf("dependency cycle detected involving plugin %s", name))
		}
		if visited[name] {
			return nil
		}

		visiting[name] = true
		for _, dep := range deps[name] {
			if !known[dep] {
				return DependencyError(name, fmt.Sprintf("depends on unknown plugin %s", dep))
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		visiting[name] = false

		visited[name] = true
		order = append(order, name)
		return nil
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// reverse returns a reversed copy of order, used for shutdown sequencing.
func reverse(order []string) []string {
	out := make([]string, len(order))
	for i, name := range order {
		out[len(order)-1-i] = name
	}
	return out
}
