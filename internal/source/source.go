// Package source holds what the player adapters share: the Source contract
// and artwork lookup for local files.
package source

import (
	"context"
	"errors"

	"github.com/llehouerou/presence/internal/track"
)

// Adapter kinds accepted by configuration.
const (
	KindMPD   = "mpd"
	KindMPRIS = "mpris"
)

// ErrUnavailable is returned while the player cannot be reached. The
// presence machine treats it like a stopped player.
var ErrUnavailable = errors.New("player unavailable")

// Source is a pollable player connection.
type Source interface {
	Current(ctx context.Context) (track.Playback, error)
	Close() error
}
