package plugin

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorConstructors(t *testing.T) {
	cause := errors.New("underlying")

	tests := []struct {
		name     string
		err      *Error
		category Category
		contains string
	}{
		{
			name:     "load",
			err:      LoadError("cache", "factory failed", cause),
			category: CategoryLoad,
			contains: "factory failed",
		},
		{
			name:     "invalid state carries current state and operation",
			err:      InvalidStateError("cache", StateLoaded, "start"),
			category: CategoryState,
			contains: "cannot start in state loaded",
		},
		{
			name:     "dependency",
			err:      DependencyError("cache", "depends on unknown plugin ghost"),
			category: CategoryDependency,
			contains: "ghost",
		},
		{
			name:     "configuration",
			err:      ConfigurationError("cache", "missing endpoint", cause),
			category: CategoryConfiguration,
			contains: "missing endpoint",
		},
		{
			name:     "lifecycle",
			err:      LifecycleError("cache", "initialize", cause),
			category: CategoryLifecycle,
			contains: "initialize failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.category, tt.err.Category)
			assert.Contains(t, tt.err.Error(), tt.contains)
			assert.True(t, IsCategory(tt.err, tt.category))
		})
	}
}

// The error state and the state-category error constructor are distinct
// names: one is a lifecycle State value, the other builds an *Error.
func TestErrorStateAndInvalidStateErrorAreDistinct(t *testing.T) {
	assert.Equal(t, "error", StateError.String())

	err := InvalidStateError("cache", StateError, "start")
	require.NotNil(t, err)
	assert.True(t, IsCategory(err, CategoryState))
	assert.Contains(t, err.Error(), "cannot start in state error")
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := LoadError("cache", "load failed", cause)
	assert.ErrorIs(t, err, cause)
}
