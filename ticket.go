package p64

import uatomic "go.uber.org/atomic"

// TicketLock is a FIFO mutex: a monotonic "next" counter hands out
// tickets to arrivals, a monotonic "serve" counter says whose turn it
// is. The two counters are independent fields, updated independently
// (next via fetch-add on Acquire, serve via plain store on Release) —
// unlike tfrwlock.go's dequeue word, there is no need to read or CAS
// them together, so they aren't packed into one word.
type TicketLock struct {
	next  uatomic.Uint32 // ticket dispenser
	serve uatomic.Uint32
	bo    backoff
}

// Ticket identifies one holder's turn; Acquire returns it so Release
// doesn't need to re-derive it from shared state.
type Ticket uint32

// NewTicketLock creates a free TicketLock.
func NewTicketLock(opts ...Option) *TicketLock {
	_, bo := resolve(opts)
	return &TicketLock{bo: bo}
}

// Acquire obtains the next ticket and blocks until it is served.
func (l *TicketLock) Acquire() Ticket {
	t := l.next.Inc() - 1
	waitUntilEqualU32(&l.serve, t, l.bo)
	return Ticket(t)
}

// Release serves the next ticket, admitting whichever goroutine drew it.
func (l *TicketLock) Release(t Ticket) {
	l.serve.Store(uint32(t) + 1)
}

// Snapshot reports the current (next, serve) pair, for tests and
// fairness instrumentation; not part of the lock/unlock protocol.
func (l *TicketLock) Snapshot() (next, serve uint32) {
	return l.next.Load(), l.serve.Load()
}
