package history

import (
	"context"
	"time"

	"github.com/llehouerou/presence/internal/presence"
)

// Sink writes presence updates to a Store. It implements sink.Blocking and
// is not safe for concurrent use.
type Sink struct {
	store *Store
	now   func() time.Time

	key string
	art string
}

// NewSink creates a sink writing to store.
func NewSink(store *Store) *Sink {
	return &Sink{store: store, now: time.Now}
}

// Update records a new play, or the artwork of the current one.
func (s *Sink) Update(ctx context.Context, snap presence.Snapshot) error {
	if snap.TrackKey == s.key {
		if snap.ArtworkURL == s.art {
			return nil
		}
		s.art = snap.ArtworkURL
		return s.store.SetArtwork(ctx, snap.TrackKey, snap.ArtworkURL)
	}

	err := s.store.Start(ctx, Play{
		TrackKey:   snap.TrackKey,
		Title:      snap.Title,
		Artist:     snap.Artist,
		Album:      snap.Album,
		ArtworkURL: snap.ArtworkURL,
		StartedAt:  snap.Start,
	}, s.now())
	if err != nil {
		return err
	}
	s.key, s.art = snap.TrackKey, snap.ArtworkURL
	return nil
}

// Clear ends the current play.
func (s *Sink) Clear(ctx context.Context) error {
	s.key, s.art = "", ""
	return s.store.EndAll(ctx, s.now())
}
