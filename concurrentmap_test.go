package p64

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WonderfulVoid/progress64/internal/stress"
)

func TestLockedMapStoreLoad(t *testing.T) {
	m := &LockedMap{}

	m.Store("foo", "bar")
	out, ok := m.Load("foo")
	require.True(t, ok)
	assert.Equal(t, "bar", out)

	_, ok = m.Load("missing")
	assert.False(t, ok)
}

func TestLockedMapCompareAndSwap(t *testing.T) {
	m := &LockedMap{}
	m.Store("k", 1)

	assert.False(t, m.CompareAndSwap("k", 2, 3), "stale expected value must not swap")
	assert.True(t, m.CompareAndSwap("k", 1, 3))
	v, _ := m.Load("k")
	assert.Equal(t, 3, v)
}

func TestLockedMapConcurrentStores(t *testing.T) {
	m := &LockedMap{}
	const goroutines = 8
	const perGoroutine = 200

	err := stress.Go(goroutines, func(id int) error {
		for i := 0; i < perGoroutine; i++ {
			m.Store(id*perGoroutine+i, true)
		}
		return nil
	})
	require.NoError(t, err)

	count := 0
	m.Range(func(any, any) bool {
		count++
		return true
	})
	assert.Equal(t, goroutines*perGoroutine, count)
}

func TestBoxedMapStoreLoad(t *testing.T) {
	m := &BoxedMap{}

	m.Store("foo", "bar")
	out, ok := m.Load("foo")
	require.True(t, ok)
	assert.Equal(t, "bar", out)

	prev, loaded := m.Swap("foo", "baz")
	assert.True(t, loaded)
	assert.Equal(t, "bar", prev)

	out, _ = m.Load("foo")
	assert.Equal(t, "baz", out)
}

func TestBoxedMapDeleteIsTombstone(t *testing.T) {
	m := &BoxedMap{}
	m.Store("foo", "bar")
	m.Delete("foo")

	_, ok := m.Load("foo")
	assert.False(t, ok)

	// the slot still exists but holds no value, so a CompareAndSwap
	// expecting the deleted value fails
	assert.False(t, m.CompareAndSwap("foo", "bar", "new"))
}

func TestBoxedMapConcurrentUpdatesToExistingKey(t *testing.T) {
	m := &BoxedMap{}
	m.Store("shared", 0)

	const goroutines = 8
	err := stress.Go(goroutines, func(id int) error {
		for i := 0; i < 100; i++ {
			m.Store("shared", id)
		}
		return nil
	})
	require.NoError(t, err)

	v, ok := m.Load("shared")
	require.True(t, ok)
	assert.IsType(t, 0, v)
}
