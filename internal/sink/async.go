package sink

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/llehouerou/presence/internal/presence"
)

const closeTimeout = 5 * time.Second

// Blocking is a destination whose calls may block on I/O.
type Blocking interface {
	Update(ctx context.Context, s presence.Snapshot) error
	Clear(ctx context.Context) error
}

// Async runs a Blocking sink on its own goroutine. Only the latest
// update or clear is kept while the worker is busy; earlier ones are
// superseded.
type Async struct {
	name string
	dst  Blocking
	log  *zap.Logger

	mu        sync.Mutex
	next      *op
	heartbeat bool
	closed    bool

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

type op struct {
	clear bool
	snap  presence.Snapshot
}

// NewAsync starts a worker for dst.
func NewAsync(name string, dst Blocking, log *zap.Logger) *Async {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	a := &Async{
		name:   name,
		dst:    dst,
		log:    log,
		wake:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

// Update implements presence.Sink.
func (a *Async) Update(s presence.Snapshot) {
	a.enqueue(&op{snap: s})
}

// Clear implements presence.Sink.
func (a *Async) Clear() {
	a.enqueue(&op{clear: true})
}

// Heartbeat forwards to dst on the worker when dst implements Heartbeater.
func (a *Async) Heartbeat(context.Context) {
	if _, ok := a.dst.(Heartbeater); !ok {
		return
	}
	a.mu.Lock()
	if !a.closed {
		a.heartbeat = true
	}
	a.mu.Unlock()
	a.signal()
}

func (a *Async) enqueue(o *op) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.next = o
	a.mu.Unlock()
	a.signal()
}

func (a *Async) signal() {
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

func (a *Async) run() {
	defer close(a.done)
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-a.wake:
		}
		a.drain(a.ctx)
	}
}

// drain applies queued work until none is left.
func (a *Async) drain(ctx context.Context) {
	for {
		a.mu.Lock()
		o, hb := a.next, a.heartbeat
		a.next, a.heartbeat = nil, false
		a.mu.Unlock()

		if o == nil && !hb {
			return
		}
		if hb {
			a.dst.(Heartbeater).Heartbeat(ctx)
		}
		if o != nil {
			a.apply(ctx, o)
		}
	}
}

func (a *Async) apply(ctx context.Context, o *op) {
	var err error
	if o.clear {
		err = a.dst.Clear(ctx)
	} else {
		err = a.dst.Update(ctx, o.snap)
	}
	if err != nil {
		a.log.Warn("sink call failed",
			zap.String("sink", a.name),
			zap.Bool("clear", o.clear),
			zap.Error(err))
	}
}

// Close stops the worker, applies the last queued call, then closes dst
// when it implements Close() error.
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	a.cancel()
	<-a.done

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	a.drain(ctx)

	if c, ok := a.dst.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
