package presence

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rivo/uniseg"

	"github.com/llehouerou/presence/internal/track"
)

// MaxFieldLength caps every free-text field handed to a sink.
const MaxFieldLength = 128

// Snapshot is the immutable payload of one presence update.
type Snapshot struct {
	TrackKey   string
	Title      string
	Artist     string
	Album      string
	ArtworkURL string
	Start      time.Time
	End        time.Time // zero when the duration is unknown
}

// HasEnd reports whether an expected end time is known.
func (s Snapshot) HasEnd() bool {
	return !s.End.IsZero()
}

// newSnapshot derives the payload from one poll result. Timestamps are
// computed once from now: start = now - elapsed, end = now + remaining.
func newSnapshot(pb track.Playback, artworkURL string, now time.Time) Snapshot {
	t := pb.Track
	snap := Snapshot{
		TrackKey:   t.ID,
		Title:      Truncate(t.Title, MaxFieldLength),
		Artist:     Truncate(t.Artist, MaxFieldLength),
		Album:      Truncate(t.Album, MaxFieldLength),
		ArtworkURL: artworkURL,
		Start:      now.Add(-pb.Position),
	}
	if t.Duration > 0 {
		snap.End = now.Add(pb.Remaining())
	}
	return snap
}

// Truncate trims s and caps it at max runes without splitting a grapheme
// cluster.
func Truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= max {
		return s
	}

	g := uniseg.NewGraphemes(s)
	runes, end := 0, 0
	for g.Next() {
		n := len(g.Runes())
		if runes+n > max {
			break
		}
		runes += n
		_, end = g.Positions()
	}
	return s[:end]
}
