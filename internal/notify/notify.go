// Package notify shows a desktop notification when the track changes.
package notify

// Urgency is the freedesktop notification priority.
type Urgency byte

const (
	UrgencyLow      Urgency = 0
	UrgencyNormal   Urgency = 1
	UrgencyCritical Urgency = 2
)

const (
	appName     = "presence"
	defaultIcon = "audio-x-generic"
)

// Notification contains data for a desktop notification.
type Notification struct {
	Title      string
	Body       string
	Icon       string  // icon name or file path
	Timeout    int32   // ms, -1 = server default, 0 = never expire
	ReplacesID uint32  // 0 = new notification
	Urgency    Urgency
}

// Notifier sends desktop notifications.
type Notifier interface {
	// Notify shows n and returns its id. It returns 0 and no error when
	// notifications are unavailable.
	Notify(n Notification) (uint32, error)
	// Close dismisses a notification.
	Close(id uint32) error
}

// noop is used when no notification service is reachable.
type noop struct{}

func (noop) Notify(Notification) (uint32, error) { return 0, nil }
func (noop) Close(uint32) error                  { return nil }
