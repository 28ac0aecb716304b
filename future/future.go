// Package future provides a single-assignment result cell. A Future is set
// exactly once, by Resolve or Fail; later attempts are ignored. Readers may
// await it any number of times.
package future

import (
	"context"
	"sync"
)

type Future[T any] struct {
	mux   sync.Mutex
	done  chan struct{}
	value T
	err   error
}

func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved returns a future already carrying a value.
func Resolved[T any](value T) *Future[T] {
	f := New[T]()
	f.Resolve(value)
	return f
}

// Resolve sets the result. It reports false if the future was already set.
func (f *Future[T]) Resolve(value T) bool {
	f.mux.Lock()
	defer f.mux.Unlock()
	select {
	case <-f.done:
		return false
	default:
	}
	f.value = value
	close(f.done)
	return true
}

// Fail sets the error. It reports false if the future was already set.
func (f *Future[T]) Fail(err error) bool {
	f.mux.Lock()
	defer f.mux.Unlock()
	select {
	case <-f.done:
		return false
	default:
	}
	f.err = err
	close(f.done)
	return true
}

// Done is closed once the future is resolved or failed.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// IsDone reports whether the future has been set.
func (f *Future[T]) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Await suspends the caller until the future is set or the context ends.
// Abandoning a future (context timeout) does not unset it; the owning session
// retires it only on resolution, failure or teardown.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
