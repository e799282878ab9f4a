package p64

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WonderfulVoid/progress64/internal/stress"
)

// TestTicketLockFIFO stresses the lock with many goroutines incrementing a
// shared counter; since acquisition order is FIFO the released ticket value
// observed by each holder must be monotonically increasing across the run.
func TestTicketLockFIFO(t *testing.T) {
	l := NewTicketLock()
	counter := 0
	var lastTicket int64 = -1

	const goroutines = 8
	const iters = 10000
	err := stress.Go(goroutines, func(int) error {
		for i := 0; i < iters; i++ {
			tk := l.Acquire()
			if int64(tk) <= lastTicket {
				l.Release(tk)
				t.Errorf("ticket %d served out of order after %d", tk, lastTicket)
				return nil
			}
			lastTicket = int64(tk)
			counter++
			l.Release(tk)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, goroutines*iters, counter)

	next, serve := l.Snapshot()
	assert.Equal(t, next, serve)
}
