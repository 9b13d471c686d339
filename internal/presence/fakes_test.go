package presence

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/llehouerou/presence/internal/track"
)

type fakeTimer struct {
	d       time.Duration
	fn      func(context.Context)
	stopped bool
	fired   bool
}

// fakeLoop runs nothing on its own; tests fire timers and drain posts.
// Fire ignores the stopped flag on purpose to simulate a fire racing stop.
type fakeLoop struct {
	now    time.Time
	timers []*fakeTimer

	mu     sync.Mutex
	posted []func(context.Context)
}

func newFakeLoop() *fakeLoop {
	return &fakeLoop{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (l *fakeLoop) Now() time.Time { return l.now }

func (l *fakeLoop) AfterFunc(d time.Duration, fn func(context.Context)) func() bool {
	t := &fakeTimer{d: d, fn: fn}
	l.timers = append(l.timers, t)
	return func() bool {
		if t.stopped || t.fired {
			return false
		}
		t.stopped = true
		return true
	}
}

func (l *fakeLoop) Post(fn func(context.Context)) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.posted = append(l.posted, fn)
	return true
}

func (l *fakeLoop) postedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.posted)
}

func (l *fakeLoop) drain(ctx context.Context) {
	l.mu.Lock()
	posted := l.posted
	l.posted = nil
	l.mu.Unlock()
	for _, fn := range posted {
		fn(ctx)
	}
}

func (l *fakeLoop) fire(ctx context.Context, t *fakeTimer) {
	t.fired = true
	t.fn(ctx)
}

func (l *fakeLoop) lastTimer() *fakeTimer {
	if len(l.timers) == 0 {
		return nil
	}
	return l.timers[len(l.timers)-1]
}

func (l *fakeLoop) outstanding() int {
	n := 0
	for _, t := range l.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type fakeSource struct {
	pb  track.Playback
	err error
}

func (s *fakeSource) Current(context.Context) (track.Playback, error) {
	return s.pb, s.err
}

func (s *fakeSource) play(t *track.Track, pos time.Duration) {
	s.pb = track.Playback{State: track.StatePlaying, Track: t, Position: pos}
	s.err = nil
}

func (s *fakeSource) stop() {
	s.pb = track.Playback{State: track.StateStopped}
	s.err = nil
}

func (s *fakeSource) pause() {
	s.pb.State = track.StatePaused
}

func (s *fakeSource) fail() {
	s.pb = track.Playback{}
	s.err = errors.New("player not running")
}

type fakeSink struct {
	updates []Snapshot
	clears  int
}

func (s *fakeSink) Update(snap Snapshot) { s.updates = append(s.updates, snap) }
func (s *fakeSink) Clear()               { s.clears++ }

func (s *fakeSink) last() Snapshot {
	if len(s.updates) == 0 {
		return Snapshot{}
	}
	return s.updates[len(s.updates)-1]
}
