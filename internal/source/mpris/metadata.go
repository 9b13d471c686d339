package mpris

import (
	"strings"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/llehouerou/presence/internal/source"
	"github.com/llehouerou/presence/internal/track"
)

func parseStatus(v any) track.State {
	s, _ := v.(string)
	switch s {
	case "Playing":
		return track.StatePlaying
	case "Paused":
		return track.StatePaused
	default:
		return track.StateStopped
	}
}

// trackFromMetadata maps the xesam/mpris metadata dictionary. It returns
// nil when the player reports no track.
func trackFromMetadata(m map[string]dbus.Variant) *track.Track {
	if len(m) == 0 {
		return nil
	}

	fileURL := stringValue(m["xesam:url"])
	trackID := objectPathValue(m["mpris:trackid"])
	title := stringValue(m["xesam:title"])
	if fileURL == "" && trackID == "" && title == "" {
		return nil
	}

	// Prefer the file URL: some players reuse trackids per queue slot.
	idSource := fileURL
	if idSource == "" {
		idSource = trackID
	}
	if idSource == "" {
		idSource = strings.Join([]string{
			strings.Join(stringsValue(m["xesam:artist"]), ","),
			stringValue(m["xesam:album"]),
			title,
		}, "\x00")
	}

	t := &track.Track{
		ID:       track.StableID("mpris", idSource),
		Title:    title,
		Artist:   strings.Join(stringsValue(m["xesam:artist"]), ", "),
		Album:    stringValue(m["xesam:album"]),
		Duration: microseconds(m["mpris:length"].Value()),
	}
	if t.Artist == "" {
		t.Artist = strings.Join(stringsValue(m["xesam:albumArtist"]), ", ")
	}

	artURL := stringValue(m["mpris:artUrl"])
	switch {
	case source.IsRemote(artURL):
		t.ArtworkURL = artURL
	case artURL != "":
		if p, ok := source.LocalPath(artURL); ok {
			t.Artwork = source.ImageFile(p)
		}
	}
	if t.Artwork == nil && t.ArtworkURL == "" {
		if p, ok := source.LocalPath(fileURL); ok {
			t.Artwork = source.FileArtwork(p)
		}
	}
	return t
}

func stringValue(v dbus.Variant) string {
	s, _ := v.Value().(string)
	return s
}

func objectPathValue(v dbus.Variant) string {
	switch p := v.Value().(type) {
	case dbus.ObjectPath:
		return string(p)
	case string:
		return p
	}
	return ""
}

func stringsValue(v dbus.Variant) []string {
	switch s := v.Value().(type) {
	case []string:
		return s
	case string:
		if s != "" {
			return []string{s}
		}
	}
	return nil
}

// microseconds converts MPRIS time values, which players send as int64,
// uint64 or sometimes a float.
func microseconds(v any) time.Duration {
	var us int64
	switch n := v.(type) {
	case int64:
		us = n
	case uint64:
		us = int64(n)
	case int32:
		us = int64(n)
	case uint32:
		us = int64(n)
	case float64:
		us = int64(n)
	default:
		return 0
	}
	if us < 0 {
		return 0
	}
	return time.Duration(us) * time.Microsecond
}
