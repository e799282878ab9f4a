// Package stress runs a fixed number of goroutines against a caller-supplied
// worker function and reports the first error, if any. It exists only to
// give the lock and ring buffer tests a single place to spin up a
// contention storm instead of hand-rolling sync.WaitGroup boilerplate in
// every test file.
package stress

import "golang.org/x/sync/errgroup"

// Go launches n goroutines running fn concurrently, waits for all of them,
// and returns the first non-nil error any of them returned.
func Go(n int, fn func(id int) error) error {
	var eg errgroup.Group
	for id := 0; id < n; id++ {
		id := id
		eg.Go(func() error { return fn(id) })
	}
	return eg.Wait()
}
