package artcache

import (
	"context"
	"errors"
)

// ErrPending is returned by Future.Result while the computation is running.
var ErrPending = errors.New("artwork pending")

// Future is the single-assignment result of an artwork computation.
// It is shared by every caller asking for the same identity.
type Future struct {
	done chan struct{}
	url  string
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func resolvedFuture(url string, err error) *Future {
	f := newFuture()
	f.resolve(url, err)
	return f
}

// resolve must be called exactly once.
func (f *Future) resolve(url string, err error) {
	f.url = url
	f.err = err
	close(f.done)
}

// Done is closed once the computation has completed.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Ready reports whether the computation has completed, successfully or not.
func (f *Future) Ready() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Result returns the outcome without blocking.
func (f *Future) Result() (string, error) {
	if !f.Ready() {
		return "", ErrPending
	}
	return f.url, f.err
}

// Wait blocks until the computation completes or ctx is done.
func (f *Future) Wait(ctx context.Context) (string, error) {
	select {
	case <-f.done:
		return f.url, f.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Value returns the resolved URL, or fallback when the computation is
// still pending or has failed.
func (f *Future) Value(fallback string) string {
	url, err := f.Result()
	if err != nil || url == "" {
		return fallback
	}
	return url
}

// succeeded reports whether the future completed with a URL.
func (f *Future) succeeded() bool {
	url, err := f.Result()
	return err == nil && url != ""
}
