package p64

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRingBufferNBENQSingleRangeBypassesPendingWindow checks the boundary
// behavior named for non-blocking enqueue: a single caller releasing a
// range wider than PENDMAX succeeds in one atomic in-order CAS, since the
// pending-window check only applies once the in-order CAS has already
// failed once.
func TestRingBufferNBENQSingleRangeBypassesPendingWindow(t *testing.T) {
	rb := Alloc[int](64, NBENQ) // consumer defaults to MCDEQ
	require.NotNil(t, rb)

	data := make([]int, PendMax+1)
	for i := range data {
		data[i] = i
	}
	n := rb.Enqueue(data)
	require.Equal(t, uint32(PendMax+1), n)

	cur, pend := rb.prod.released.load()
	assert.Equal(t, uint32(PendMax+1), cur)
	assert.Zero(t, pend, "a single-range release must not leave pending bits set")
}

// TestRingBufferNBENQOutOfOrderReleaseDefersViaPendingBits reproduces the
// boundary scenario named for non-blocking enqueue: two concurrent
// single-element acquires where the second releases first. That release
// must defer via the pending bitmap rather than advancing cur, and only
// the first release (now covering both indices) advances cur by 2.
func TestRingBufferNBENQOutOfOrderReleaseDefersViaPendingBits(t *testing.T) {
	rb := Alloc[int](64, NBENQ)
	require.NotNil(t, rb)

	rA := rb.AcquireEnqueue(1)
	rB := rb.AcquireEnqueue(1)
	require.Equal(t, uint32(1), rA.Actual)
	require.Equal(t, uint32(1), rB.Actual)
	require.Equal(t, rA.Index+1, rB.Index)

	rb.writeSlots([]int{20}, rB)
	rb.ReleaseEnqueue(rB)

	cur, pend := rb.prod.released.load()
	assert.Equal(t, rA.Index, cur, "B's release must not advance cur ahead of A")
	assert.NotZero(t, pend, "B's release must be recorded in the pending bitmap")

	rb.writeSlots([]int{10}, rA)
	rb.ReleaseEnqueue(rA)

	cur, pend = rb.prod.released.load()
	assert.Equal(t, rA.Index+2, cur, "A's release must fold B's pending bit in, advancing cur by 2")
	assert.Zero(t, pend)

	out := make([]int, 2)
	require.Equal(t, uint32(2), rb.Dequeue(out))
	assert.Equal(t, []int{10, 20}, out)
}

// TestRingBufferNBDEQSingleRangeBypassesPendingWindow is NBENQ's dequeue
// counterpart: one caller dequeuing a range wider than PENDMAX releases it
// atomically without ever consulting the pending bitmap.
func TestRingBufferNBDEQSingleRangeBypassesPendingWindow(t *testing.T) {
	rb := Alloc[int](64, NBDEQ) // producer defaults to MPENQ
	require.NotNil(t, rb)

	data := make([]int, PendMax+1)
	for i := range data {
		data[i] = i
	}
	require.Equal(t, uint32(PendMax+1), rb.Enqueue(data))

	out := make([]int, PendMax+1)
	n := rb.Dequeue(out)
	require.Equal(t, uint32(PendMax+1), n)
	assert.Equal(t, data, out)

	cur, pend := rb.cons.released.load()
	assert.Equal(t, uint32(PendMax+1), cur)
	assert.Zero(t, pend)
}

// TestRingBufferNBDEQOutOfOrderReleaseDefersViaPendingBits mirrors the
// NBENQ out-of-order scenario on the dequeue side: two concurrent
// single-element dequeue acquires, the second releasing first, must defer
// via the pending bitmap until the first release folds both in.
func TestRingBufferNBDEQOutOfOrderReleaseDefersViaPendingBits(t *testing.T) {
	rb := Alloc[int](64, NBDEQ)
	require.NotNil(t, rb)
	require.Equal(t, uint32(2), rb.Enqueue([]int{10, 20}))

	rA := rb.AcquireDequeue(1)
	rB := rb.AcquireDequeue(1)
	require.Equal(t, uint32(1), rA.Actual)
	require.Equal(t, uint32(1), rB.Actual)
	require.Equal(t, rA.Index+1, rB.Index)

	var bufB [1]int
	rb.readSlots(bufB[:], rB)
	rb.ReleaseDequeue(rB)

	cur, pend := rb.cons.released.load()
	assert.Equal(t, rA.Index, cur, "B's release must not advance cur ahead of A")
	assert.NotZero(t, pend, "B's release must be recorded in the pending bitmap")

	var bufA [1]int
	rb.readSlots(bufA[:], rA)
	rb.ReleaseDequeue(rA)

	cur, pend = rb.cons.released.load()
	assert.Equal(t, rA.Index+2, cur, "A's release must fold B's pending bit in, advancing cur by 2")
	assert.Zero(t, pend)

	assert.Equal(t, 10, bufA[0])
	assert.Equal(t, 20, bufB[0])
}
