package config

import "strings"

// Lookup resolves a dotted key (e.g. "cache.ttl_seconds") against a nested
// configuration map, returning def when any path segment is absent or a
// non-map value is traversed. This is the lookup surface handed to plugins
// through their context.
func Lookup(m map[string]any, key string, def any) any {
	if m == nil || key == "" {
		return def
	}

	segments := strings.Split(key, ".")
	current := m
	for i, seg := range segments {
		v, ok := current[seg]
		if !ok {
			return def
		}
		if i == len(segments)-1 {
			return v
		}

		switch nested := v.(type) {
		case map[string]any:
			current = nested
		case map[any]any:
			// yaml.v3 decodes into map[string]any, but plugin-supplied maps
			// may still arrive in this shape.
			converted := make(map[string]any, len(nested))
			for k, vv := range nested {
				if ks, ok := k.(string); ok {
					converted[ks] = vv
				}
			}
			current = converted
		default:
			return def
		}
	}
	return def
}
