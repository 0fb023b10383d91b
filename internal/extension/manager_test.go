package extension

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendHandler(suffix string) Handler {
	return func(ctx context.Context, data any) (any, error) {
		return data.(string) + suffix, nil
	}
}

func TestRegisterPointValidation(t *testing.T) {
	m := NewManager(nil)

	require.NoError(t, m.RegisterPoint(Point{Name: "p", Type: TypeFilter}))
	assert.Error(t, m.RegisterPoint(Point{Name: "p", Type: TypeFilter}), "duplicate name")
	assert.Error(t, m.RegisterPoint(Point{Name: "", Type: TypeFilter}))
	assert.Error(t, m.RegisterPoint(Point{Name: "q", Type: Type("bogus")}))
}

func TestFilterRunsInPriorityOrder(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.RegisterPoint(Point{Name: "text.filter", Type: TypeFilter}))

	m.RegisterHandler("text.filter", "h1", appendHandler("a"), 1)
	m.RegisterHandler("text.filter", "h2", appendHandler("b"), 2)

	assert.Equal(t, "ab", m.Call(context.Background(), "text.filter", ""))
}

func TestFilterPrioritySwapReversesOrder(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.RegisterPoint(Point{Name: "text.filter", Type: TypeFilter}))

	m.RegisterHandler("text.filter", "h1", appendHandler("a"), 2)
	m.RegisterHandler("text.filter", "h2", appendHandler("b"), 1)

	assert.Equal(t, "ba", m.Call(context.Background(), "text.filter", ""))
}

func TestFilterIsStableOnPriorityTies(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.RegisterPoint(Point{Name: "text.filter", Type: TypeFilter}))

	for _, s := range []string{"1", "2", "3", "4"} {
		m.RegisterHandler("text.filter", "h"+s, appendHandler(s), 5)
	}

	assert.Equal(t, "1234", m.Call(context.Background(), "text.filter", ""))
}

func TestFilterFailureContinuesWithPreviousValue(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.RegisterPoint(Point{Name: "text.filter", Type: TypeFilter}))

	m.RegisterHandler("text.filter", "ok1", appendHandler("a"), 1)
	m.RegisterHandler("text.filter", "bad", func(ctx context.Context, data any) (any, error) {
		return nil, errors.New("broken")
	}, 2)
	m.RegisterHandler("text.filter", "ok2", appendHandler("c"), 3)

	assert.Equal(t, "ac", m.Call(context.Background(), "text.filter", ""))
}

func TestActionCollectsInRegistrationOrder(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.RegisterPoint(Point{Name: "jobs.action", Type: TypeAction}))

	for i := 0; i < 8; i++ {
		i := i
		m.RegisterHandler("jobs.action", fmt.Sprintf("h%d", i), func(ctx context.Context, data any) (any, error) {
			return i, nil
		}, 0)
	}

	results := m.Call(context.Background(), "jobs.action", nil).([]any)
	require.Len(t, results, 8)
	for i, r := range results {
		assert.Equal(t, i, r, "results must preserve registration order, not completion order")
	}
}

func TestActionExcludesFailures(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.RegisterPoint(Point{Name: "jobs.action", Type: TypeAction}))

	m.RegisterHandler("jobs.action", "ok1", func(ctx context.Context, data any) (any, error) {
		return "first", nil
	}, 1)
	m.RegisterHandler("jobs.action", "bad", func(ctx context.Context, data any) (any, error) {
		return nil, errors.New("broken")
	}, 2)
	m.RegisterHandler("jobs.action", "ok2", func(ctx context.Context, data any) (any, error) {
		return "second", nil
	}, 3)

	results := m.Call(context.Background(), "jobs.action", nil).([]any)
	assert.Equal(t, []any{"first", "second"}, results)
}

func TestActionRecoversPanickingHandler(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.RegisterPoint(Point{Name: "jobs.action", Type: TypeAction}))

	m.RegisterHandler("jobs.action", "panics", func(ctx context.Context, data any) (any, error) {
		panic("handler bug")
	}, 1)
	m.RegisterHandler("jobs.action", "ok", func(ctx context.Context, data any) (any, error) {
		return "fine", nil
	}, 2)

	results := m.Call(context.Background(), "jobs.action", nil).([]any)
	assert.Equal(t, []any{"fine"}, results)
}

func TestHookNotifiesAllAndReturnsNil(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.RegisterPoint(Point{Name: "shutdown.hook", Type: TypeHook}))

	var count atomic.Int32
	for i := 0; i < 3; i++ {
		m.RegisterHandler("shutdown.hook", "h", func(ctx context.Context, data any) (any, error) {
			count.Add(1)
			return nil, nil
		}, 0)
	}

	result := m.Call(context.Background(), "shutdown.hook", nil)
	assert.Nil(t, result)
	assert.Equal(t, int32(3), count.Load())
}

func TestProviderDropsNilResults(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.RegisterPoint(Point{Name: "health.provider", Type: TypeProvider}))

	m.RegisterHandler("health.provider", "present", func(ctx context.Context, data any) (any, error) {
		return map[string]any{"status": "ok"}, nil
	}, 1)
	m.RegisterHandler("health.provider", "silent", func(ctx context.Context, data any) (any, error) {
		return nil, nil
	}, 2)

	results := m.Call(context.Background(), "health.provider", nil).([]any)
	require.Len(t, results, 1)
	assert.Equal(t, map[string]any{"status": "ok"}, results[0])
}

func TestCallUnknownPointReturnsInputUnchanged(t *testing.T) {
	m := NewManager(nil)
	assert.Equal(t, "untouched", m.Call(context.Background(), "no.such.point", "untouched"))
}

func TestRegisterHandlerUnknownPointIsNoOp(t *testing.T) {
	m := NewManager(nil)
	// Must not panic or error.
	m.RegisterHandler("no.such.point", "h", appendHandler("x"), 0)
}

func TestUnregisterHandlers(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.RegisterPoint(Point{Name: "text.filter", Type: TypeFilter}))

	m.RegisterHandler("text.filter", "mine", appendHandler("a"), 1)
	m.RegisterHandler("text.filter", "other", appendHandler("b"), 2)
	m.UnregisterHandlers("mine")

	assert.Equal(t, "b", m.Call(context.Background(), "text.filter", ""))

	info, ok := m.Describe("text.filter")
	require.True(t, ok)
	assert.Equal(t, 1, info.HandlerCount)
}

func TestDescribeAndList(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.RegisterPoint(Point{
		Name:        "health.provider",
		Type:        TypeProvider,
		Description: "aggregate health details",
		Contract:    "nil -> map[string]any",
	}))
	require.NoError(t, m.RegisterPoint(Point{Name: "text.filter", Type: TypeFilter}))
	m.RegisterHandler("health.provider", "h", func(ctx context.Context, data any) (any, error) { return nil, nil }, 0)

	info, ok := m.Describe("health.provider")
	require.True(t, ok)
	assert.Equal(t, TypeProvider, info.Type)
	assert.Equal(t, 1, info.HandlerCount)

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, "health.provider", list[0].Name)
	assert.Equal(t, "text.filter", list[1].Name)

	_, ok = m.Describe("missing")
	assert.False(t, ok)
}
