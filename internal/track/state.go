package track

import "time"

// State represents the player's playback state.
type State int

const (
	StateStopped State = iota
	StatePlaying
	StatePaused
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StatePlaying:
		return "Playing"
	case StatePaused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// Playback is what a player source reports on each poll.
type Playback struct {
	State    State
	Track    *Track
	Position time.Duration // elapsed
}

// IsPlaying reports whether a track is present and actively playing.
func (p Playback) IsPlaying() bool {
	return p.State == StatePlaying && p.Track != nil
}

// Remaining returns the time left until the track's finish offset.
// Returns 0 when the duration is unknown or already passed.
func (p Playback) Remaining() time.Duration {
	if p.Track == nil || p.Track.Duration <= 0 {
		return 0
	}
	if r := p.Track.Duration - p.Position; r > 0 {
		return r
	}
	return 0
}
