package track

import (
	"errors"
	"strings"
)

// ErrInvalidKey is returned by ParseKey for names that cannot be identities.
var ErrInvalidKey = errors.New("invalid track key")

// Identity identifies a track across live polls and persisted cache entries.
//
// There are exactly two variants, Live and Recovered. Equality and hashing
// use Key only, so a Live and a Recovered identity with the same key are
// interchangeable as cache keys.
type Identity interface {
	Key() string
	// Track returns the live track, or nil for recovered identities.
	Track() *Track
	sealed()
}

// Live is an identity backed by a track reported by the player.
type Live struct {
	T *Track
}

// Recovered is an identity restored from a persisted cache entry.
type Recovered struct {
	ID string
}

// NewLive wraps a live track.
func NewLive(t *Track) Live { return Live{T: t} }

func (l Live) Key() string {
	if l.T == nil {
		return ""
	}
	return l.T.ID
}

func (l Live) Track() *Track { return l.T }
func (Live) sealed()         {}

func (r Recovered) Key() string { return r.ID }
func (Recovered) Track() *Track { return nil }
func (Recovered) sealed()       {}

// Equal compares two identities by key.
func Equal(a, b Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Key() == b.Key()
}

// ParseKey validates a persisted key (a cache filename) and returns the
// recovered identity for it.
func ParseKey(name string) (Recovered, error) {
	if name == "" || name == "." || name == ".." {
		return Recovered{}, ErrInvalidKey
	}
	if strings.IndexFunc(name, func(r rune) bool { return !validKeyRune(r) }) >= 0 {
		return Recovered{}, ErrInvalidKey
	}
	return Recovered{ID: name}, nil
}

// ValidKey reports whether key can be used as a cache filename.
func ValidKey(key string) bool {
	_, err := ParseKey(key)
	return err == nil
}

func validKeyRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-', r == '_', r == '.':
		return true
	}
	return false
}
