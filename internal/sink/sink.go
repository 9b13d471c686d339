// Package sink fans presence updates out to several destinations.
package sink

import (
	"context"
	"errors"
	"io"

	"github.com/llehouerou/presence/internal/presence"
)

// Heartbeater is implemented by sinks that need periodic upkeep, such as
// reconnecting or flushing.
type Heartbeater interface {
	Heartbeat(ctx context.Context)
}

// Multi forwards every call to each of its sinks in order.
type Multi []presence.Sink

// Update implements presence.Sink.
func (m Multi) Update(s presence.Snapshot) {
	for _, sk := range m {
		sk.Update(s)
	}
}

// Clear implements presence.Sink.
func (m Multi) Clear() {
	for _, sk := range m {
		sk.Clear()
	}
}

// Heartbeat forwards to the sinks that implement Heartbeater.
func (m Multi) Heartbeat(ctx context.Context) {
	for _, sk := range m {
		if hb, ok := sk.(Heartbeater); ok {
			hb.Heartbeat(ctx)
		}
	}
}

// Close closes the sinks that implement io.Closer, in reverse order.
func (m Multi) Close() error {
	var errs []error
	for i := len(m) - 1; i >= 0; i-- {
		if c, ok := m[i].(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
