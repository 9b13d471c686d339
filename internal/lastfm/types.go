package lastfm

import "time"

// ScrobbleTrack contains track metadata for scrobbling.
type ScrobbleTrack struct {
	Artist    string
	Track     string
	Album     string
	Duration  time.Duration
	Timestamp time.Time // When playback started
}

// Valid reports whether Last.fm will accept the track.
func (t ScrobbleTrack) Valid() bool {
	return t.Artist != "" && t.Track != ""
}
