// Package presence implements the state machine that turns player polls
// into presence updates.
//
// The machine is not safe for concurrent use. All of its methods, and the
// callbacks it schedules, must run on one loop (see internal/scheduler).
package presence

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/llehouerou/presence/internal/artcache"
	"github.com/llehouerou/presence/internal/metrics"
	"github.com/llehouerou/presence/internal/track"
)

const defaultTimerSlack = time.Second

// Source reports what the player is doing.
type Source interface {
	Current(ctx context.Context) (track.Playback, error)
}

// Artwork resolves artwork URLs.
type Artwork interface {
	Get(id track.Identity) *artcache.Future
}

// Sink receives presence updates. Calls are fire-and-forget.
type Sink interface {
	Update(s Snapshot)
	Clear()
}

// Loop is the single thread of control the machine runs on.
type Loop interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func(context.Context)) (stop func() bool)
	Post(fn func(context.Context)) bool
}

// Deps are the machine's collaborators.
type Deps struct {
	Source  Source
	Artwork Artwork
	Sink    Sink
	Loop    Loop
	Log     *zap.Logger
	Metrics *metrics.Metrics
}

// Option configures a Machine.
type Option func(*Machine)

// WithFallbackImage sets the URL shown while artwork is missing.
func WithFallbackImage(url string) Option {
	return func(m *Machine) { m.fallback = url }
}

// WithTimerSlack delays the end-of-track refresh past the predicted end so
// the player has moved on by the time it fires.
func WithTimerSlack(d time.Duration) Option {
	return func(m *Machine) {
		if d >= 0 {
			m.slack = d
		}
	}
}

// Machine tracks Idle/Active state and owns the end-of-track timer.
type Machine struct {
	Deps
	fallback string
	slack    time.Duration

	active  bool
	current *track.Track
	shown   Snapshot

	// gen invalidates timer fires scheduled before the latest arm/cancel.
	gen       uint64
	stopTimer func() bool

	// waiting is the key whose pending artwork is being watched.
	waiting string
}

// New creates an idle machine.
func New(deps Deps, opts ...Option) *Machine {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	m := &Machine{Deps: deps, slack: defaultTimerSlack}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Active reports whether a presence is currently displayed.
func (m *Machine) Active() bool {
	return m.active
}

// Shown returns the last emitted snapshot, if active.
func (m *Machine) Shown() (Snapshot, bool) {
	return m.shown, m.active
}

// Tick evaluates one poll-driven transition.
func (m *Machine) Tick(ctx context.Context) {
	m.evaluate(ctx, false)
}

// Refresh evaluates a forced transition: an active machine re-emits even
// when the track has not changed.
func (m *Machine) Refresh(ctx context.Context) {
	m.evaluate(ctx, true)
}

// ArtworkSettled forces a refresh when key is the displayed track.
func (m *Machine) ArtworkSettled(ctx context.Context, key string) {
	if m.waiting == key {
		m.waiting = ""
	}
	if !m.active || m.current.ID != key {
		return
	}
	m.Log.Debug("artwork settled for displayed track", zap.String("key", key))
	m.Refresh(ctx)
}

// Stop clears the presence if one is displayed.
func (m *Machine) Stop() {
	if m.active {
		m.deactivate()
	}
}

func (m *Machine) evaluate(ctx context.Context, forced bool) {
	pb, err := m.Source.Current(ctx)
	if err != nil {
		m.Log.Debug("player unavailable, treating as stopped", zap.Error(err))
		m.Metrics.PollFailed()
		pb = track.Playback{State: track.StateStopped}
	}

	if !pb.IsPlaying() {
		if m.active {
			m.deactivate()
		}
		return
	}

	if m.active && !forced && pb.Track.ID == m.current.ID {
		return
	}
	m.activate(pb)
}

func (m *Machine) activate(pb track.Playback) {
	m.cancelTimer()

	now := m.Loop.Now()
	t := pb.Track
	fut := m.Artwork.Get(track.NewLive(t))
	snap := newSnapshot(pb, fut.Value(m.fallback), now)

	m.active = true
	m.current = t
	m.shown = snap

	m.Log.Info("presence updated",
		zap.String("artist", snap.Artist),
		zap.String("title", snap.Title),
		zap.String("image", snap.ArtworkURL))
	m.Sink.Update(snap)
	m.Metrics.PresenceUpdated()

	if !fut.Ready() {
		m.watch(t.ID, fut)
	}
	if remaining := pb.Remaining(); remaining > 0 {
		m.armTimer(remaining + m.slack)
	}
}

func (m *Machine) deactivate() {
	m.cancelTimer()
	m.active = false
	m.current = nil
	m.shown = Snapshot{}
	m.waiting = ""

	m.Sink.Clear()
	m.Metrics.PresenceCleared()
	m.Log.Info("presence cleared")
}

func (m *Machine) armTimer(d time.Duration) {
	m.gen++
	gen := m.gen
	m.stopTimer = m.Loop.AfterFunc(d, func(ctx context.Context) {
		m.timerFired(ctx, gen)
	})
	m.Log.Debug("end-of-track timer armed", zap.Duration("in", d), zap.Uint64("gen", gen))
}

func (m *Machine) cancelTimer() {
	if m.stopTimer != nil {
		m.stopTimer()
		m.stopTimer = nil
	}
	m.gen++
}

func (m *Machine) timerFired(ctx context.Context, gen uint64) {
	if gen != m.gen || !m.active {
		m.Log.Debug("dropping stale end-of-track timer", zap.Uint64("gen", gen))
		return
	}
	m.stopTimer = nil
	m.Log.Debug("end-of-track timer fired")
	m.Refresh(ctx)
}

// watch posts ArtworkSettled back onto the loop once fut completes.
func (m *Machine) watch(key string, fut *artcache.Future) {
	if m.waiting == key {
		return
	}
	m.waiting = key
	go func() {
		<-fut.Done()
		m.Loop.Post(func(ctx context.Context) {
			m.ArtworkSettled(ctx, key)
		})
	}()
}
