package p64

import (
	"math/bits"

	uatomic "go.uber.org/atomic"
)

// Flags select the producer and consumer disciplines for Alloc.
type Flags uint32

const (
	SPENQ Flags = 1 << iota // single-producer enqueue
	MPENQ                   // multi-producer blocking enqueue (default)
	NBENQ                   // multi-producer non-blocking enqueue
	SCDEQ                   // single-consumer dequeue
	MCDEQ                   // multi-consumer blocking dequeue (default)
	NBDEQ                   // multi-consumer non-blocking dequeue
	LFDEQ                   // multi-consumer lock-free dequeue
)

// MaxElems is the user-visible capacity ceiling. The original's
// 0xFFFFFFFF MAXELEMS would, once rounded up to a power of two, overflow
// 32 bits for values in (2^31, 2^32-1]; this rewrite caps the documented
// maximum at 2^31 instead of truncating silently.
const MaxElems = 1 << 31

// PendMax is the width of the non-blocking release pending bitmap.
const PendMax = 32

const pendMax = PendMax

type prodMode int

const (
	prodSingle prodMode = iota
	prodBlocking
	prodNonBlocking
)

type consMode int

const (
	consSingle consMode = iota
	consBlocking
	consNonBlocking
	consLockFree
)

// resolveFlags validates and decodes Flags into the tagged prod/cons
// mode pair. The original encodes producer/consumer discipline by
// stealing bits of a handle pointer; this is the tagged-wrapper
// replacement, carried as two small enums on the struct instead.
func resolveFlags(flags Flags) (prodMode, consMode, bool) {
	invalid := []struct{ a, b Flags }{
		{SPENQ, NBENQ},
		{SCDEQ, NBDEQ},
		{SCDEQ, LFDEQ},
		{NBDEQ, LFDEQ},
	}
	for _, c := range invalid {
		if flags&c.a != 0 && flags&c.b != 0 {
			return 0, 0, false
		}
	}
	pm := prodBlocking
	switch {
	case flags&SPENQ != 0:
		pm = prodSingle
	case flags&NBENQ != 0:
		pm = prodNonBlocking
	}
	cm := consBlocking
	switch {
	case flags&SCDEQ != 0:
		cm = consSingle
	case flags&LFDEQ != 0:
		cm = consLockFree
	case flags&NBDEQ != 0:
		cm = consNonBlocking
	}
	return pm, cm, true
}

// idxpair packs a 32-bit in-order index and a 32-bit pending-release
// bitmap into one word so both can be read or CAS'd together. Word
// layout: high 32 bits = pend, low 32 bits = cur.
type idxpair struct {
	word uatomic.Uint64
}

func (p *idxpair) load() (cur, pend uint32) {
	hi, lo := unpack32(p.word.Load())
	return lo, hi
}

func (p *idxpair) loadAcquire() uint32 {
	cur, _ := p.load()
	return cur
}

func (p *idxpair) cas(oldCur, oldPend, newCur, newPend uint32) bool {
	return p.word.CompareAndSwap(pack32(oldPend, oldCur), pack32(newPend, newCur))
}

func (p *idxpair) store(cur uint32) {
	p.word.Store(pack32(0, cur))
}

// endpoint is one side (producer or consumer) of the ring: how many
// slots it has claimed (its own tail), and the idxpair that the OTHER
// side reads to learn how many slots are free (for producers) or
// occupied (for consumers).
//
// This replaces the original's head/tail aliasing trick (the consumer
// struct reuses "head" and "tail" fields with swapped meaning to share
// a cache line with the producer's) with two plainly-named fields per
// side; see DESIGN.md.
type endpoint struct {
	claimed  uatomic.Uint32 // this side's own tail: slots handed out so far
	released idxpair        // published to the peer: how far this side has committed
	capacity uint32         // nelems, used only on the producer side
}

// RingBuffer is a bounded FIFO of elements of type T with six
// producer/consumer disciplines.
type RingBuffer[T any] struct {
	prod endpoint
	cons endpoint

	mask     uint32
	nelems   uint32
	prodMode prodMode
	consMode consMode
	bo       backoff
	pendMax  uint32

	ring []T
}

func roundUpPow2(n uint32) uint32 {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len32(n-1)
}

// Alloc creates a ring buffer of capacity nelems (rounded up internally
// to a power of two; Cap() still reports nelems). It returns nil and
// reports a validation error for nelems == 0, nelems >
// MaxElems, or a mutually-exclusive flag combination.
func Alloc[T any](nelems uint32, flags Flags, opts ...Option) *RingBuffer[T] {
	if nelems == 0 || nelems > MaxElems {
		reportError("ringbuf", "invalid number of elements", nelems)
		return nil
	}
	pm, cm, ok := resolveFlags(flags)
	if !ok {
		reportError("ringbuf", "invalid flags", flags)
		return nil
	}
	cfg, bo := resolve(opts)
	ringsz := roundUpPow2(nelems)
	rb := &RingBuffer[T]{
		mask:     ringsz - 1,
		nelems:   nelems,
		prodMode: pm,
		consMode: cm,
		bo:       bo,
		pendMax:  cfg.PendMax,
		ring:     make([]T, ringsz),
	}
	rb.prod.capacity = nelems
	return rb
}

// Cap reports the user-visible capacity (nelems), not the internal
// power-of-two ring size.
func (rb *RingBuffer[T]) Cap() uint32 { return rb.nelems }

// Free reports "not empty" if the producer and consumer heads disagree,
// mirroring p64_ringbuf_free's emptiness check.
func (rb *RingBuffer[T]) Free() bool {
	// Empty iff the total published-by-producer count equals the total
	// acknowledged-consumed count; this is the same comparison the
	// original performs between its (swapped-naming) prod.head.cur and
	// cons.head.cur fields, here named for what they actually track.
	if rb.prod.released.loadAcquire() != rb.cons.released.loadAcquire() {
		reportError("ringbuf", "ring buffer not empty", rb)
		return false
	}
	return true
}

// Result is the outcome of a two-phase Acquire: a contiguous run of at
// most the requested count of slot indices, or Actual == 0 if the peer
// side had insufficient space/elements right now (not an error).
type Result struct {
	Index  uint32
	Actual uint32
	Mask   uint32
}

func minU32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

// acquireSingle is the MT-unsafe single producer/consumer fast path: a
// plain atomic load and store of our own tail, an acquire-load of the
// peer's position, no CAS.
func acquireSingle(own *endpoint, peerReleased *idxpair, n uint32, mask uint32) Result {
	tail := own.claimed.Load() // only this goroutine ever writes it
	head := peerReleased.loadAcquire()
	actual := minU32(n, own.capacity+head-tail)
	if actual == 0 {
		return Result{}
	}
	own.claimed.Store(tail + actual)
	return Result{Index: tail, Actual: actual, Mask: mask}
}

// acquireMulti is the MT-safe multi producer/consumer path: CAS the
// claimed counter forward by the computed run length, retrying against
// a freshly observed peer position on failure. This is the portable
// fallback in place of a 16-byte endpoint CAS: head and tail are read
// separately and only tail is CAS'd.
func acquireMulti(own *endpoint, peerReleased *idxpair, n uint32, mask uint32) Result {
	tail := own.claimed.Load()
	for {
		head := peerReleased.loadAcquire()
		actual := minU32(n, own.capacity+head-tail)
		if actual == 0 {
			return Result{}
		}
		if own.claimed.CompareAndSwap(tail, tail+actual) {
			return Result{Index: tail, Actual: actual, Mask: mask}
		}
		tail = own.claimed.Load()
	}
}

// AcquireEnqueue reserves up to n slots for writing. Between Acquire and
// Release the caller writes the slots at (Index+k)&Mask for k in
// [0, Actual).
func (rb *RingBuffer[T]) AcquireEnqueue(n uint32) Result {
	switch rb.prodMode {
	case prodSingle:
		return acquireSingle(&rb.prod, &rb.cons.released, n, rb.mask)
	default: // blocking or non-blocking: both use the MT-safe CAS path
		return acquireMulti(&rb.prod, &rb.cons.released, n, rb.mask)
	}
}

// AcquireDequeue reserves up to n slots for reading.
func (rb *RingBuffer[T]) AcquireDequeue(n uint32) Result {
	if rb.consMode == consLockFree {
		head := rb.cons.released.loadAcquire() // peer's (producer's) free-space witness, speculative
		tail := rb.prod.released.loadAcquire()
		actual := minU32(n, tail-head)
		if actual == 0 {
			return Result{}
		}
		return Result{Index: head, Actual: actual, Mask: rb.mask}
	}
	if rb.consMode == consSingle {
		return acquireSingle(&rb.cons, &rb.prod.released, n, rb.mask)
	}
	return acquireMulti(&rb.cons, &rb.prod.released, n, rb.mask)
}

// releaseBlocking waits for its turn (loc.cur == index) before
// publishing, so the peer only ever observes contiguous ranges appear;
// releaseSingle skips the wait since it is the only writer.
func releaseBlocking(loc *idxpair, index, n uint32, bo backoff) {
	wait := bo.base
	for loc.loadAcquire() != index {
		doze(wait)
		if wait < bo.max {
			wait *= 2
		}
	}
	loc.store(index + n)
}

func releaseSingle(loc *idxpair, index, n uint32) {
	loc.store(index + n)
}

// releaseNonBlocking implements the pending-bitmap coalescing release
// attempt an in-order CAS first; on failure, record our
// range in the pending bitmap (if it fits within the window) and fold
// in however many trailing slots are now contiguous.
func releaseNonBlocking(loc *idxpair, index, n uint32, pendMax uint32, bo backoff) {
	wait := bo.base
	for {
		cur, pend := loc.load()
		if cur == index && pend == 0 {
			if loc.cas(index, 0, index+n, 0) {
				return
			}
			continue
		}
		delta := (index + n) - cur
		if delta > pendMax {
			// Outside the pending window; must wait and retry in order.
			doze(wait)
			if wait < bo.max {
				wait *= 2
			}
			continue
		}
		break
	}
	for {
		cur, pend := loc.load()
		offset := index - cur
		ourpend := ((uint32(1) << n) - 1) << offset
		newpend := pend | ourpend
		inorder := uint32(bits.TrailingZeros32(^newpend))
		neu := newpend >> inorder
		if loc.cas(cur, pend, cur+inorder, neu) {
			return
		}
	}
}

// ReleaseEnqueue publishes previously-acquired producer slots to the
// consumer side.
func (rb *RingBuffer[T]) ReleaseEnqueue(r Result) {
	loc := &rb.prod.released
	switch rb.prodMode {
	case prodSingle:
		releaseSingle(loc, r.Index, r.Actual)
	case prodNonBlocking:
		releaseNonBlocking(loc, r.Index, r.Actual, rb.pendMax, rb.bo)
	default:
		releaseBlocking(loc, r.Index, r.Actual, rb.bo)
	}
}

// ReleaseDequeue publishes previously-acquired consumer slots back to
// the producer side as free space. It returns whether the release
// succeeded; only the lock-free discipline can fail here: for it this
// call is the CAS that claims the range AcquireDequeue observed, and it
// fails if another consumer claimed that range first.
func (rb *RingBuffer[T]) ReleaseDequeue(r Result) bool {
	if rb.consMode == consLockFree {
		return rb.cons.released.word.CompareAndSwap(
			pack32(0, r.Index), pack32(0, r.Index+r.Actual))
	}
	loc := &rb.cons.released
	switch rb.consMode {
	case consSingle:
		releaseSingle(loc, r.Index, r.Actual)
	case consNonBlocking:
		releaseNonBlocking(loc, r.Index, r.Actual, rb.pendMax, rb.bo)
	default:
		releaseBlocking(loc, r.Index, r.Actual, rb.bo)
	}
	return true
}

// writeSlots copies ev[0:r.Actual] into the ring at r.Index, splitting
// across the wrap point if the range crosses the end of the backing
// slice.
func (rb *RingBuffer[T]) writeSlots(ev []T, r Result) {
	start := r.Index & r.Mask
	if r.Actual <= 1 {
		rb.ring[start] = ev[0]
		return
	}
	seg0 := r.Mask + 1 - start
	if r.Actual <= seg0 {
		copy(rb.ring[start:start+r.Actual], ev[:r.Actual])
		return
	}
	copy(rb.ring[start:], ev[:seg0])
	copy(rb.ring[:r.Actual-seg0], ev[seg0:r.Actual])
}

func (rb *RingBuffer[T]) readSlots(ev []T, r Result) {
	start := r.Index & r.Mask
	if r.Actual <= 1 {
		ev[0] = rb.ring[start]
		return
	}
	seg0 := r.Mask + 1 - start
	if r.Actual <= seg0 {
		copy(ev[:r.Actual], rb.ring[start:start+r.Actual])
		return
	}
	copy(ev[:seg0], rb.ring[start:])
	copy(ev[seg0:r.Actual], rb.ring[:r.Actual-seg0])
}

// Enqueue writes as many of ev as fit and returns the count actually
// enqueued, which may be less than len(ev) (including 0, if the ring is
// full).
func (rb *RingBuffer[T]) Enqueue(ev []T) uint32 {
	r := rb.AcquireEnqueue(uint32(len(ev)))
	if r.Actual == 0 {
		return 0
	}
	if rb.prodMode == prodNonBlocking {
		// Write the elements from last to first, element 0 last. All of
		// them, element 0 included, are plain stores; the consumer sees
		// the range only through the atomic idxpair update made by
		// ReleaseEnqueue below.
		for i := r.Actual - 1; i >= 1; i-- {
			rb.ring[(r.Index+i)&r.Mask] = ev[i]
		}
		rb.ring[r.Index&r.Mask] = ev[0]
	} else {
		rb.writeSlots(ev, r)
	}
	rb.ReleaseEnqueue(r)
	return r.Actual
}

// Dequeue reads as many elements as fit into ev and returns the count
// actually dequeued.
func (rb *RingBuffer[T]) Dequeue(ev []T) uint32 {
	if rb.consMode == consLockFree {
		for {
			r := rb.AcquireDequeue(uint32(len(ev)))
			if r.Actual == 0 {
				return 0
			}
			rb.readSlots(ev[:r.Actual], r)
			if rb.ReleaseDequeue(r) {
				return r.Actual
			}
			// CAS lost the race for this range; the read was
			// non-destructive so simply retry.
		}
	}
	r := rb.AcquireDequeue(uint32(len(ev)))
	if r.Actual == 0 {
		return 0
	}
	rb.readSlots(ev[:r.Actual], r)
	rb.ReleaseDequeue(r)
	return r.Actual
}
