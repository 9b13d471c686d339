package discord

import (
	"encoding/json"
	"time"

	"github.com/llehouerou/presence/internal/presence"
)

// activityListening is Discord's "Listening to" activity type.
const activityListening = 2

type handshake struct {
	V        int    `json:"v"`
	ClientID string `json:"client_id"`
}

type command struct {
	Cmd   string `json:"cmd"`
	Args  any    `json:"args,omitempty"`
	Nonce string `json:"nonce,omitempty"`
}

type setActivityArgs struct {
	PID      int       `json:"pid"`
	Activity *activity `json:"activity"`
}

type activity struct {
	Type       int         `json:"type"`
	Details    string      `json:"details,omitempty"`
	State      string      `json:"state,omitempty"`
	Timestamps *timestamps `json:"timestamps,omitempty"`
	Assets     *assets     `json:"assets,omitempty"`
}

type timestamps struct {
	Start int64 `json:"start,omitempty"`
	End   int64 `json:"end,omitempty"`
}

type assets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
}

type response struct {
	Cmd   string          `json:"cmd"`
	Evt   string          `json:"evt"`
	Nonce string          `json:"nonce"`
	Data  json.RawMessage `json:"data"`
}

type errorData struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type readyData struct {
	User struct {
		Username string `json:"username"`
	} `json:"user"`
}

// newActivity maps a snapshot to Discord's activity payload. Empty text
// fields are left out.
func newActivity(s presence.Snapshot) *activity {
	a := &activity{
		Type:    activityListening,
		Details: s.Title,
		State:   s.Artist,
	}
	if !s.Start.IsZero() {
		a.Timestamps = &timestamps{Start: millis(s.Start)}
		if s.HasEnd() {
			a.Timestamps.End = millis(s.End)
		}
	}
	if s.ArtworkURL != "" || s.Album != "" {
		a.Assets = &assets{LargeImage: s.ArtworkURL, LargeText: s.Album}
	}
	return a
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}
