package p64

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WonderfulVoid/progress64/internal/stress"
)

// TestRWLockReadersConcurrent checks that a reader holding the lock never
// overlaps a writer's critical section (the writer bit itself may already be
// set while earlier readers drain), and that a write excludes every reader.
func TestRWLockReadersConcurrent(t *testing.T) {
	l := NewRWLock()
	var inWriter atomic.Int32
	var shared atomic.Int64
	var violations atomic.Int64

	const readers = 6
	const writers = 2
	const iters = 500

	err := stress.Go(readers+writers, func(id int) error {
		if id < writers {
			for i := 0; i < iters; i++ {
				l.AcquireWrite()
				inWriter.Add(1)
				shared.Add(1)
				inWriter.Add(-1)
				l.ReleaseWrite()
			}
			return nil
		}
		for i := 0; i < iters; i++ {
			l.AcquireRead()
			if inWriter.Load() != 0 {
				violations.Add(1)
			}
			l.ReleaseRead()
		}
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, violations.Load())
	assert.Equal(t, int64(writers*iters), shared.Load())
}

func TestRWLockReadersShareTheLock(t *testing.T) {
	l := NewRWLock()
	l.AcquireRead()
	l.AcquireRead()
	assert.Equal(t, uint32(2), l.word.Load()&rwReaderMask)
	l.ReleaseRead()
	l.ReleaseRead()
	assert.Zero(t, l.word.Load())
}
