package p64

import uatomic "go.uber.org/atomic"

// SpinLock is a ticketless test-and-set mutex: one word, 0 free, 1 held.
// It gives no fairness guarantee: under contention some goroutine may
// be starved arbitrarily long. See TicketLock or CLHLock for FIFO
// alternatives.
type SpinLock struct {
	word uatomic.Uint32
	bo   backoff
}

// NewSpinLock creates a free SpinLock.
func NewSpinLock(opts ...Option) *SpinLock {
	_, bo := resolve(opts)
	return &SpinLock{bo: bo}
}

// Acquire blocks until the lock is held by the caller.
func (l *SpinLock) Acquire() {
	for {
		waitUntilEqualU32(&l.word, 0, l.bo)
		if l.word.CompareAndSwap(0, 1) {
			return
		}
	}
}

// Release releases the lock. Calling Release without a matching
// Acquire is caller error and is not checked (the word has no owner
// identity to validate against, unlike the RW lock).
func (l *SpinLock) Release() {
	l.word.Store(0)
}
