package batcher

import (
	"context"
	"sync/atomic"
)

// Result is a one-shot handle for a submitted payload.
// The dispatcher settles it exactly once; the submitter waits on it.
type Result struct {
	id      string
	done    chan struct{}
	settled atomic.Bool

	// written once before done is closed
	value []byte
	err   error
}

func newResult(id string) *Result {
	return &Result{
		id:   id,
		done: make(chan struct{}),
	}
}

// ID returns the request ID of the submitted item
func (r *Result) ID() string {
	return r.id
}

// Done returns a channel that is closed once the result is settled
func (r *Result) Done() <-chan struct{} {
	return r.done
}

// Settled returns true if the result has a value or an error
func (r *Result) Settled() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the result settles or ctx is done.
// Giving up on the wait does not remove the item from its batch.
func (r *Result) Wait(ctx context.Context) ([]byte, error) {
	select {
	case <-r.done:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// resolve settles the result with a value.
// Returns false if the result was already settled; the first settlement wins.
func (r *Result) resolve(value []byte) bool {
	if !r.settled.CompareAndSwap(false, true) {
		return false
	}
	r.value = value
	close(r.done)
	return true
}

// reject settles the result with an error.
// Returns false if the result was already settled; the first settlement wins.
func (r *Result) reject(err error) bool {
	if !r.settled.CompareAndSwap(false, true) {
		return false
	}
	r.err = err
	close(r.done)
	return true
}
