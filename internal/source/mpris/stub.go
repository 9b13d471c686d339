//go:build !linux

package mpris

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/llehouerou/presence/internal/track"
)

// ErrUnsupported is returned on platforms without D-Bus.
var ErrUnsupported = errors.New("mpris is only supported on linux")

// Source is unavailable on non-Linux platforms.
type Source struct{}

// New returns ErrUnsupported on non-Linux platforms.
func New(_ string, _ *zap.Logger) (*Source, error) {
	return nil, ErrUnsupported
}

// Current implements presence.Source.
func (s *Source) Current(context.Context) (track.Playback, error) {
	return track.Playback{}, ErrUnsupported
}

// Close is a no-op.
func (s *Source) Close() error {
	return nil
}
