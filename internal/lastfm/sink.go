package lastfm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/llehouerou/presence/internal/presence"
)

const (
	minScrobbleLength = 30 * time.Second
	maxScrobbleWait   = 4 * time.Minute
)

// Scrobbler is the part of Client the sink uses.
type Scrobbler interface {
	UpdateNowPlaying(t ScrobbleTrack) error
	Scrobble(t ScrobbleTrack) error
}

// Sink sends now-playing updates and scrobbles tracks that were shown
// long enough. It implements sink.Blocking and is not safe for concurrent
// use; wrap it in sink.Async.
type Sink struct {
	client Scrobbler
	log    *zap.Logger
	now    func() time.Time

	key     string
	playing ScrobbleTrack

	// scrobbled is the key last scrobbled. It is kept until another track
	// is shown so a paused and resumed track is scrobbled once.
	scrobbled string
}

// NewSink creates a sink.
func NewSink(client Scrobbler, log *zap.Logger) *Sink {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sink{client: client, log: log, now: time.Now}
}

// Update reports a new track as now playing. Repeated updates for the
// shown track are ignored.
func (s *Sink) Update(_ context.Context, snap presence.Snapshot) error {
	if snap.TrackKey == s.key {
		return nil
	}
	s.finish()
	if snap.TrackKey != s.scrobbled {
		s.scrobbled = ""
	}

	t := ScrobbleTrack{
		Artist:    snap.Artist,
		Track:     snap.Title,
		Album:     snap.Album,
		Timestamp: snap.Start,
	}
	if snap.HasEnd() {
		t.Duration = snap.End.Sub(snap.Start)
	}
	s.key, s.playing = snap.TrackKey, t
	if !t.Valid() {
		return nil
	}
	return s.client.UpdateNowPlaying(t)
}

// Clear ends the current play.
func (s *Sink) Clear(context.Context) error {
	s.finish()
	s.key, s.playing = "", ScrobbleTrack{}
	return nil
}

// finish scrobbles the current play when it qualifies.
func (s *Sink) finish() {
	if s.key == "" || s.key == s.scrobbled || !s.qualifies() {
		return
	}
	if err := s.client.Scrobble(s.playing); err != nil {
		s.log.Warn("scrobble failed", zap.String("track", s.playing.Track), zap.Error(err))
		return
	}
	s.scrobbled = s.key
	s.log.Debug("scrobbled", zap.String("track", s.playing.Track))
}

// qualifies applies Last.fm's rule: longer than 30s and played for half
// its length or four minutes, whichever comes first.
func (s *Sink) qualifies() bool {
	t := s.playing
	if !t.Valid() || t.Duration <= minScrobbleLength {
		return false
	}
	need := min(t.Duration/2, maxScrobbleWait)
	return s.now().Sub(t.Timestamp) >= need
}
