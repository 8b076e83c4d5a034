package session

import (
	"context"
	"errors"

	"github.com/MikeSquared-Agency/confide/internal/detector"
)

// ErrPending is returned by Result while the pass is still running.
var ErrPending = errors.New("detection still running")

// Future is one detection pass running in the background. Its result may only be
// read after done is closed; Ready and Wait are the only ways to observe that.
type Future struct {
	done chan struct{}
	dets []detector.Detection
	err  error
}

// Go starts fn in a new goroutine and returns its handle.
func Go(fn func() ([]detector.Detection, error)) *Future {
	f := &Future{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.dets, f.err = fn()
	}()
	return f
}

// Ready reports whether the pass has finished, without blocking.
func (f *Future) Ready() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Done is closed once the pass has finished.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the pass finishes or ctx ends.
func (f *Future) Wait(ctx context.Context) ([]detector.Detection, error) {
	select {
	case <-f.done:
		return f.dets, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the outcome of a finished pass, or ErrPending.
func (f *Future) Result() ([]detector.Detection, error) {
	if !f.Ready() {
		return nil, ErrPending
	}
	return f.dets, f.err
}
