package p64

import uatomic "go.uber.org/atomic"

const (
	rwWriterBit  uint32 = 1 << 31
	rwReaderMask uint32 = rwWriterBit - 1
)

// RWLock is a writer-priority-free reader/writer lock packed into a
// single 32-bit word: the high bit is the writer flag, the low 31 bits
// count active readers. Readers and writers compete on equal footing;
// under sustained reader arrival a writer may starve.
type RWLock struct {
	word uatomic.Uint32
	bo   backoff
}

// NewRWLock creates a free RWLock.
func NewRWLock(opts ...Option) *RWLock {
	_, bo := resolve(opts)
	return &RWLock{bo: bo}
}

// AcquireRead blocks until a read lock is held. It aborts the process
// if the 31-bit reader count would overflow: a caller bug (a stray
// reference-counting error elsewhere), not a condition to wrap silently.
func (l *RWLock) AcquireRead() {
	for {
		w := waitWhileMaskedU32(&l.word, rwWriterBit, l.bo)
		if w&rwReaderMask == rwReaderMask {
			fatalMisuse("rwlock", "reader count overflow", l)
		}
		if l.word.CompareAndSwap(w, w+1) {
			return
		}
	}
}

// ReleaseRead releases a previously-acquired read lock. The writer bit
// may be set (a writer waiting for readers to drain); releasing when no
// reader is counted, i.e. without a matching AcquireRead, is fatal misuse.
func (l *RWLock) ReleaseRead() {
	prev := l.word.Dec() + 1 // fetch-sub semantics: value before the decrement
	if prev&rwReaderMask == 0 {
		fatalMisuse("rwlock", "invalid read release", l)
	}
}

// AcquireWrite blocks until the write lock is held: the writer bit is
// claimed first, then the call waits for any already-admitted readers
// to drain.
func (l *RWLock) AcquireWrite() {
	for {
		w := waitWhileMaskedU32(&l.word, rwWriterBit, l.bo)
		if l.word.CompareAndSwap(w, w|rwWriterBit) {
			break
		}
	}
	waitWhileMaskedU32(&l.word, rwReaderMask, l.bo)
}

// ReleaseWrite releases the write lock. The word must be exactly the
// writer bit (no readers snuck in, which AcquireWrite's drain wait
// should make impossible) or this is fatal misuse.
func (l *RWLock) ReleaseWrite() {
	if l.word.Load() != rwWriterBit {
		fatalMisuse("rwlock", "invalid write release", l)
	}
	l.word.Store(0)
}
