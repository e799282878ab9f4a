package p64

import "sync/atomic"

// CLHNode is a single waiter's queue entry. Each waiter spins on its
// predecessor's node, never its own: cache-local spinning, no false
// sharing between waiters.
type CLHNode struct {
	wait atomic.Bool
}

// CLHLock is a FIFO mutex built from an implicit queue of CLHNode: the
// lock itself is only ever one pointer, the tail of that queue.
type CLHLock struct {
	tail atomic.Pointer[CLHNode]
	bo   backoff
}

// NewCLHLock creates a free CLHLock with its sentinel node installed.
func NewCLHLock(opts ...Option) *CLHLock {
	_, bo := resolve(opts)
	l := &CLHLock{bo: bo}
	sentinel := &CLHNode{}
	l.tail.Store(sentinel)
	return l
}

// Acquire enters the queue and blocks until it is this goroutine's turn.
//
// cell is an in/out free-node slot: pass the same variable (initially
// nil) across every Acquire/Release pair for one caller and Acquire
// reuses whatever node it finds there instead of allocating. On return,
// *cell holds the new node's predecessor, now otherwise unreferenced and
// safe to hand out on the caller's next Acquire. The node to pass to
// Release is the function's return value, not *cell: the two are
// deliberately different objects, so neither call ever overwrites a node
// a waiter may still be spinning on.
func (l *CLHLock) Acquire(cell **CLHNode) *CLHNode {
	node := *cell
	if node == nil {
		node = &CLHNode{}
	}
	node.wait.Store(true)
	pred := l.tail.Swap(node)
	waitUntilFalseAtomic(&pred.wait, l.bo)
	*cell = pred
	return node
}

// Release signals the next waiter, if any, that it may proceed. node
// must be the value returned by the matching Acquire.
func (l *CLHLock) Release(node *CLHNode) {
	node.wait.Store(false)
}

// Fini frees the node still referenced by the lock's tail (the
// sentinel, or whatever the last releaser left behind). It exists for
// parity with the C API's explicit fini/free lifecycle; in Go the node
// is simply dropped for the GC to collect.
func (l *CLHLock) Fini() {
	l.tail.Store(nil)
}

// waitUntilFalseAtomic spins on a node's wait flag until it clears. It
// uses the stdlib atomic.Bool rather than the go.uber.org/atomic wrapper
// the rest of the package prefers, since atomic.Pointer[CLHNode] (the
// queue's tail) only has a stdlib counterpart, and both halves of one
// node should come from the same package.
func waitUntilFalseAtomic(b *atomic.Bool, bo backoff) {
	wait := bo.base
	for b.Load() {
		doze(wait)
		if wait < bo.max {
			wait *= 2
		}
	}
}
