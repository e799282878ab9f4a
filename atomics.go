// Package p64 is a from-scratch Go rendering of the spin-based mutual
// exclusion and ring-buffer primitives underlying the repository's
// concurrency benchmarks. It has no scheduler dependency: every
// primitive here is a pure spinning algorithm over sync/atomic words.
package p64

import (
	"runtime"

	uatomic "go.uber.org/atomic"
)

// backoff bounds the doze() spin between re-checks of a contended word.
// Exposed via Option/config.go so callers tune it without touching the
// algorithms themselves.
type backoff struct {
	base uint32
	max  uint32
}

var defaultBackoff = backoff{base: 1, max: 4096}

// doze yields the P for n iterations, the portable stand-in for the
// architectural pause/wfe hint the C sources use under the same name.
func doze(n uint32) {
	for i := uint32(0); i < n; i++ {
		runtime.Gosched()
	}
}

// waitUntilEqualU32 spins on *addr until it equals want, backing off
// between checks. Used by SpinLock and TicketLock; the other locks spin
// with the same backoff in loops of their own.
func waitUntilEqualU32(addr *uatomic.Uint32, want uint32, bo backoff) uint32 {
	wait := bo.base
	for {
		v := addr.Load()
		if v == want {
			return v
		}
		doze(wait)
		if wait < bo.max {
			wait *= 2
		}
	}
}

// waitWhileMaskedU32 spins until *addr & mask == 0, returning the final
// observed value. Grounds p64_rwlock's wait_for_no() helper.
func waitWhileMaskedU32(addr *uatomic.Uint32, mask uint32, bo backoff) uint32 {
	wait := bo.base
	for {
		v := addr.Load()
		if v&mask == 0 {
			return v
		}
		doze(wait)
		if wait < bo.max {
			wait *= 2
		}
	}
}

// pack16 combines two 16-bit halves into one 32-bit word: hi in bits
// 16-31, lo in bits 0-15. TaskFairRWLock packs its two serve counters
// this way (and the ring buffer's idxpair uses pack32 below), the same
// way the teacher's Roundabout packs (epoch,flags,bitmap) into
// a single atomic.Uint64 so the pair can be read and CAS'd atomically.
func pack16(hi, lo uint16) uint32 {
	return uint32(hi)<<16 | uint32(lo)
}

func unpack16(w uint32) (hi, lo uint16) {
	return uint16(w >> 16), uint16(w)
}

// pack32 is pack16's 64-bit analogue, used by the ring buffer's
// pending-release word (cur:32, pend:32).
func pack32(hi, lo uint32) uint64 {
	return uint64(hi)<<32 | uint64(lo)
}

func unpack32(w uint64) (hi, lo uint32) {
	return uint32(w >> 32), uint32(w)
}
