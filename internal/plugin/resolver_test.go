package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveOrder(t *testing.T) {
	tests := []struct {
		name    string
		order   []string
		deps    map[string][]string
		want    []string
		wantErr bool
	}{
		{
			name:  "no dependencies keeps registration order",
			order: []string{"a", "b", "c"},
			deps:  map[string][]string{},
			want:  []string{"a", "b", "c"},
		},
		{
			name:  "dependency precedes dependent",
			order: []string{"a", "b"},
			deps:  map[string][]string{"a": {"b"}},
			want:  []string{"b", "a"},
		},
		{
			name:  "chain",
			order: []string{"a", "b", "c"},
			deps:  map[string][]string{"a": {"b"}, "b": {"c"}},
			want:  []string{"c", "b", "a"},
		},
		{
			name:  "diamond",
			order: []string{"top", "left", "right", "base"},
			deps: map[string][]string{
				"top":   {"left", "right"},
				"left":  {"base"},
				"right": {"base"},
			},
			want: []string{"base", "left", "right", "top"},
		},
		{
			name:    "two node cycle",
			order:   []string{"a", "b"},
			deps:    map[string][]string{"a": {"b"}, "b": {"a"}},
			wantErr: true,
		},
		{
			name:    "self cycle",
			order:   []string{"a"},
			deps:    map[string][]string{"a": {"a"}},
			wantErr: true,
		},
		{
			name:    "unknown dependency",
			order:   []string{"a"},
			deps:    map[string][]string{"a": {"ghost"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveOrder(tt.order, tt.deps)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsCategory(err, CategoryDependency))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Every dependency must appear before its dependent, regardless of the shape
// of the graph.
func TestResolveOrderDependenciesFirst(t *testing.T) {
	order := []string{"e", "d", "c", "b", "a"}
	deps := map[string][]string{
		"a": {"b", "c"},
		"b": {"d"},
		"c": {"d", "e"},
	}

	got, err := resolveOrder(order, deps)
	require.NoError(t, err)
	require.Len(t, got, len(order))

	position := make(map[string]int, len(got))
	for i, name := range got {
		position[name] = i
	}
	for name, ds := range deps {
		for _, dep := range ds {
			assert.Less(t, position[dep], position[name],
				"%s must come before %s", dep, name)
		}
	}
}

func TestReverse(t *testing.T) {
	assert.Equal(t, []string{"c", "b", "a"}, reverse([]string{"a", "b", "c"}))
	assert.Empty(t, reverse(nil))
}
