package p64

import uatomic "go.uber.org/atomic"

// TFRWTicket is a writer's ticket, returned by AcquireWrite and handed
// back to ReleaseWrite so release doesn't need to re-derive it.
type TFRWTicket uint32

// TaskFairRWLock admits readers and writers from a single shared FIFO
// of tickets. Readers queued back-to-back are released as a cohort;
// a writer runs alone. Progress is FIFO up to reader batching: neither
// class can starve the other.
//
// dequeue packs two 16-bit serve counters into one CAS'able word:
// the high half is the writer-serve point, the low half the
// reader-serve point. Both halves start equal; each admitted reader
// advances only the reader-serve half, and the last active reader's
// release catches the writer-serve half up (see ReleaseRead).
type TaskFairRWLock struct {
	enqueue     uatomic.Uint32
	dequeue     uatomic.Uint32 // pack16(writerServe, readerServe)
	readerCount uatomic.Uint32
	bo          backoff
}

// NewTaskFairRWLock creates a free TaskFairRWLock.
func NewTaskFairRWLock(opts ...Option) *TaskFairRWLock {
	_, bo := resolve(opts)
	return &TaskFairRWLock{bo: bo}
}

// AcquireRead draws a ticket, waits for the reader-serve half to reach
// it, then joins the active-reader count and immediately advances the
// reader-serve half so the next queued ticket (reader or writer) can be
// checked in turn.
func (l *TaskFairRWLock) AcquireRead() {
	ticket := uint16(l.enqueue.Inc() - 1)
	wait := l.bo.base
	for {
		old := l.dequeue.Load()
		_, r := unpack16(old)
		if r == ticket {
			break
		}
		doze(wait)
		if wait < l.bo.max {
			wait *= 2
		}
	}
	l.readerCount.Inc()
	for {
		old := l.dequeue.Load()
		w, r := unpack16(old)
		if r != ticket {
			break // another release already moved us past (shouldn't happen for our own ticket, but keep the loop honest)
		}
		neu := pack16(w, r+1)
		if l.dequeue.CompareAndSwap(old, neu) {
			break
		}
	}
}

// ReleaseRead leaves the active-reader set. The last reader to leave
// catches the writer-serve half up to the reader-serve half, unblocking
// whichever writer (if any) is queued immediately behind this cohort.
func (l *TaskFairRWLock) ReleaseRead() {
	if l.readerCount.Dec() != 0 {
		return
	}
	for {
		old := l.dequeue.Load()
		w, r := unpack16(old)
		if w == r {
			return
		}
		neu := pack16(r, r)
		if l.dequeue.CompareAndSwap(old, neu) {
			return
		}
	}
}

// AcquireWrite draws a ticket and waits for both the writer-serve half
// to reach it and the active-reader count to hit zero.
func (l *TaskFairRWLock) AcquireWrite() TFRWTicket {
	ticket := uint16(l.enqueue.Inc() - 1)
	wait := l.bo.base
	for {
		w, _ := unpack16(l.dequeue.Load())
		if w == ticket && l.readerCount.Load() == 0 {
			return TFRWTicket(ticket)
		}
		doze(wait)
		if wait < l.bo.max {
			wait *= 2
		}
	}
}

// ReleaseWrite advances both serve halves past the writer's ticket in
// one update, admitting the next writer directly behind it or the next
// cohort of queued readers.
func (l *TaskFairRWLock) ReleaseWrite(t TFRWTicket) {
	next := uint16(t) + 1
	l.dequeue.Store(pack16(next, next))
}
