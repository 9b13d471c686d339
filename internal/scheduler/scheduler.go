// Package scheduler runs periodic jobs, timers and posted callbacks on a
// single goroutine so that the state they touch needs no locking.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const eventBufferSize = 64

// ErrAlreadyRunning is returned when Run is called twice.
var ErrAlreadyRunning = errors.New("scheduler already running")

// JobOption configures a periodic job.
type JobOption func(*job)

// Async runs the job on its own goroutine instead of the loop. A run is
// skipped while the previous one is still in progress.
func Async() JobOption {
	return func(j *job) { j.async = true }
}

// Delayed skips the immediate first run; the job first runs after one
// interval.
func Delayed() JobOption {
	return func(j *job) { j.delayed = true }
}

type job struct {
	name     string
	interval time.Duration
	fn       func(context.Context)
	async    bool
	delayed  bool
	busy     atomic.Bool
}

// Scheduler is the cooperative driver. Every callback except Async jobs
// runs on the goroutine executing Run, one at a time.
type Scheduler struct {
	log     *zap.Logger
	now     func() time.Time
	events  chan func(context.Context)
	stopped chan struct{}
	started atomic.Bool

	jobs  []*job
	async sync.WaitGroup
}

// New creates a scheduler. A nil logger disables logging.
func New(log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		log:     log,
		now:     time.Now,
		events:  make(chan func(context.Context), eventBufferSize),
		stopped: make(chan struct{}),
	}
}

// Every registers a periodic job. It must be called before Run.
func (s *Scheduler) Every(name string, interval time.Duration, fn func(context.Context), opts ...JobOption) {
	j := &job{name: name, interval: interval, fn: fn}
	for _, opt := range opts {
		opt(j)
	}
	s.jobs = append(s.jobs, j)
}

// Now returns the current wall-clock time.
func (s *Scheduler) Now() time.Time {
	return s.now()
}

// Post queues fn to run on the loop. It returns false once the scheduler
// has stopped; fn is then dropped.
func (s *Scheduler) Post(fn func(context.Context)) bool {
	select {
	case <-s.stopped:
		return false
	default:
	}
	select {
	case s.events <- fn:
		return true
	case <-s.stopped:
		return false
	}
}

// AfterFunc runs fn on the loop once d has elapsed. The returned stop
// function is best-effort: it reports false when the timer already fired,
// and a fire that was queued before stop is dropped when it reaches the
// loop. Callers that must be exact keep their own generation guard.
func (s *Scheduler) AfterFunc(d time.Duration, fn func(context.Context)) (stop func() bool) {
	var cancelled atomic.Bool
	t := time.AfterFunc(d, func() {
		if cancelled.Load() {
			return
		}
		s.Post(func(ctx context.Context) {
			if cancelled.Load() {
				return
			}
			fn(ctx)
		})
	})
	return func() bool {
		cancelled.Store(true)
		return t.Stop()
	}
}

// Run executes jobs and posted callbacks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var tickers sync.WaitGroup
	for _, j := range s.jobs {
		tickers.Add(1)
		go func() {
			defer tickers.Done()
			s.tick(ctx, j)
		}()
	}

	s.log.Debug("scheduler started", zap.Int("jobs", len(s.jobs)))

	for {
		select {
		case <-ctx.Done():
			close(s.stopped)
			cancel()
			tickers.Wait()
			s.async.Wait()
			s.log.Debug("scheduler stopped")
			return nil
		case fn := <-s.events:
			fn(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, j *job) {
	if !j.delayed {
		s.dispatch(ctx, j)
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatch(ctx, j)
		}
	}
}

func (s *Scheduler) dispatch(ctx context.Context, j *job) {
	if !j.async {
		s.Post(j.fn)
		return
	}
	if !j.busy.CompareAndSwap(false, true) {
		s.log.Debug("skipping job, previous run still in progress", zap.String("job", j.name))
		return
	}
	s.async.Add(1)
	go func() {
		defer s.async.Done()
		defer j.busy.Store(false)
		j.fn(ctx)
	}()
}
