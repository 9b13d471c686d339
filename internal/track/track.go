// Package track holds the player-facing track model shared by sources,
// the artwork cache and the presence state machine.
package track

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"
)

// ArtworkLoader returns the raw bytes of the first available artwork.
type ArtworkLoader func(ctx context.Context) ([]byte, error)

// Track is a snapshot of the currently playing track as reported by a player.
type Track struct {
	// ID is derived from the player's persistent identifier (file URI,
	// database id), never from a queue position. It is filename-safe.
	ID       string
	Title    string
	Artist   string
	Album    string
	Duration time.Duration // finish offset

	// ReleaseID is the MusicBrainz release id when the file is tagged.
	ReleaseID string

	// ArtworkURL is set when the player already exposes a remote artwork URL.
	ArtworkURL string
	// Artwork is nil when the player has no artwork for this track.
	Artwork ArtworkLoader
}

// HasArtwork reports whether artwork can be produced for the track.
func (t *Track) HasArtwork() bool {
	return t != nil && (t.Artwork != nil || t.ArtworkURL != "")
}

// String returns "Artist - Title".
func (t *Track) String() string {
	if t == nil {
		return "<none>"
	}
	if t.Artist == "" {
		return t.Title
	}
	return t.Artist + " - " + t.Title
}

// StableID derives a filename-safe identifier from persistent player data.
// Parts are hashed so paths and URLs never leak into cache filenames.
func StableID(prefix string, parts ...string) string {
	h := fnv.New64a()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%s-%x", prefix, h.Sum64())
}
