package p64

import uatomic "go.uber.org/atomic"

// Phase-fair bit layout for the rin/rout counters: the low 2 bits
// encode "a writer is present" (pres) and "which phase this writer
// belongs to" (phid); reader arrivals are counted in increments of
// pfRInc so they never collide with those two bits.
const (
	pfPres  uint32 = 0x1
	pfPhID  uint32 = 0x2
	pfWBits uint32 = pfPres | pfPhID
	pfRInc  uint32 = 0x4
)

// PhaseFairRWLock alternates reader and writer phases: a reader phase
// admits every reader present when it starts; a writer arriving during
// a reader phase is queued and runs alone once that phase drains;
// readers arriving while a writer is queued are deferred to the next
// reader phase. This bounds a writer's wait to at most one reader
// cohort.
type PhaseFairRWLock struct {
	rin  uatomic.Uint32
	rout uatomic.Uint32
	win  uatomic.Uint32 // ticket dispenser for writers
	wout uatomic.Uint32 // ticket currently being served
	bo   backoff
}

// NewPhaseFairRWLock creates a free PhaseFairRWLock.
func NewPhaseFairRWLock(opts ...Option) *PhaseFairRWLock {
	_, bo := resolve(opts)
	return &PhaseFairRWLock{bo: bo}
}

// AcquireRead joins the current reader phase, or, if a writer is
// queued, waits for that writer's phase to complete before joining
// the next one.
func (l *PhaseFairRWLock) AcquireRead() {
	w := l.rin.Add(pfRInc) & pfWBits
	if w == 0 {
		return
	}
	wait := l.bo.base
	for l.rin.Load()&pfWBits == w {
		doze(wait)
		if wait < l.bo.max {
			wait *= 2
		}
	}
}

// ReleaseRead leaves the reader phase.
func (l *PhaseFairRWLock) ReleaseRead() {
	l.rout.Add(pfRInc)
}

// AcquireWrite takes a ticket in the writer FIFO, waits for its turn,
// marks itself present (stopping new readers from joining the current
// phase) and waits for every reader already counted in rin to depart.
func (l *PhaseFairRWLock) AcquireWrite() {
	ticket := l.win.Add(1) - 1
	wait := l.bo.base
	for l.wout.Load() != ticket {
		doze(wait)
		if wait < l.bo.max {
			wait *= 2
		}
	}

	w := pfPres | (ticket & pfPhID)
	rw := l.rin.Add(w) - w // rin as it was before the writer bits were added

	wait = l.bo.base
	for l.rout.Load() != rw {
		doze(wait)
		if wait < l.bo.max {
			wait *= 2
		}
	}
}

// ReleaseWrite clears the writer-present bits and advances the writer
// FIFO to the next ticket, starting the next reader phase.
func (l *PhaseFairRWLock) ReleaseWrite() {
	for {
		old := l.rin.Load()
		if l.rin.CompareAndSwap(old, old&^pfWBits) {
			break
		}
	}
	l.wout.Add(1)
}
