package notify

import (
	"context"
	"strings"

	"github.com/llehouerou/presence/internal/presence"
)

const notifyTimeout = 5000

// Sink notifies once per track, replacing its previous notification. It
// implements sink.Blocking.
type Sink struct {
	notifier Notifier
	key      string
	id       uint32
}

// NewSink creates a sink sending through n.
func NewSink(n Notifier) *Sink {
	return &Sink{notifier: n}
}

// Update notifies when the shown track changes.
func (s *Sink) Update(_ context.Context, snap presence.Snapshot) error {
	if snap.TrackKey == s.key {
		return nil
	}
	s.key = snap.TrackKey

	id, err := s.notifier.Notify(Notification{
		Title:      snap.Title,
		Body:       body(snap),
		Icon:       defaultIcon,
		Timeout:    notifyTimeout,
		ReplacesID: s.id,
		Urgency:    UrgencyLow,
	})
	if err != nil {
		return err
	}
	s.id = id
	return nil
}

// Clear dismisses the notification.
func (s *Sink) Clear(context.Context) error {
	s.key = ""
	if s.id == 0 {
		return nil
	}
	id := s.id
	s.id = 0
	return s.notifier.Close(id)
}

func body(snap presence.Snapshot) string {
	var lines []string
	for _, v := range []string{snap.Artist, snap.Album} {
		if v != "" {
			lines = append(lines, v)
		}
	}
	return strings.Join(lines, "\n")
}
