// Package mpd reads playback state from a Music Player Daemon.
package mpd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fhs/gompd/v2/mpd"
	"go.uber.org/zap"

	"github.com/llehouerou/presence/internal/source"
	"github.com/llehouerou/presence/internal/track"
)

// Default connection settings, matching mpd's own defaults.
const (
	DefaultNetwork = "tcp"
	DefaultAddress = "localhost:6600"
)

// client is the subset of *mpd.Client used here.
type client interface {
	Status() (mpd.Attrs, error)
	CurrentSong() (mpd.Attrs, error)
	AlbumArt(uri string) ([]byte, error)
	Close() error
}

type dialFunc func(network, addr, password string) (client, error)

func dialMPD(network, addr, password string) (client, error) {
	if password != "" {
		return mpd.DialAuthenticated(network, addr, password)
	}
	return mpd.Dial(network, addr)
}

// Source polls mpd over one connection, redialing after failures.
type Source struct {
	network  string
	addr     string
	password string
	dial     dialFunc
	log      *zap.Logger

	mu   sync.Mutex
	conn client
}

// New creates a source. Empty network or address use the defaults. A
// unix socket path as address selects the unix network.
func New(network, addr, password string, log *zap.Logger) *Source {
	if addr == "" {
		addr = DefaultAddress
	}
	if network == "" {
		network = DefaultNetwork
		if strings.HasPrefix(addr, "/") {
			network = "unix"
		}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Source{network: network, addr: addr, password: password, dial: dialMPD, log: log}
}

// Current implements presence.Source.
func (s *Source) Current(_ context.Context) (track.Playback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		c, err := s.dial(s.network, s.addr, s.password)
		if err != nil {
			return track.Playback{}, fmt.Errorf("%w: dial mpd %s: %v", source.ErrUnavailable, s.addr, err)
		}
		s.log.Debug("connected to mpd", zap.String("address", s.addr))
		s.conn = c
	}

	pb, err := s.read()
	if err != nil {
		s.conn.Close()
		s.conn = nil
		return track.Playback{}, fmt.Errorf("%w: %v", source.ErrUnavailable, err)
	}
	return pb, nil
}

func (s *Source) read() (track.Playback, error) {
	status, err := s.conn.Status()
	if err != nil {
		return track.Playback{}, fmt.Errorf("status: %w", err)
	}

	state := parseState(status["state"])
	if state == track.StateStopped {
		return track.Playback{State: track.StateStopped}, nil
	}

	song, err := s.conn.CurrentSong()
	if err != nil {
		return track.Playback{}, fmt.Errorf("current song: %w", err)
	}
	file := song["file"]
	if file == "" {
		return track.Playback{State: track.StateStopped}, nil
	}

	t := &track.Track{
		ID:       track.StableID("mpd", file),
		Title:    firstNonEmpty(song["Title"], song["Name"], baseName(file)),
		Artist:   firstNonEmpty(song["Artist"], song["AlbumArtist"]),
		Album:    song["Album"],
		Duration: seconds(firstNonEmpty(status["duration"], song["duration"], song["Time"])),

		ReleaseID: song["MUSICBRAINZ_ALBUMID"],
	}
	// Streams have no album art on the server.
	if !source.IsRemote(file) {
		t.Artwork = s.albumArt(file)
	}

	return track.Playback{
		State:    state,
		Track:    t,
		Position: seconds(status["elapsed"]),
	}, nil
}

// albumArt fetches the cover through the same connection when the loader
// runs, which is off the presence loop.
func (s *Source) albumArt(uri string) track.ArtworkLoader {
	return func(context.Context) ([]byte, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.conn == nil {
			return nil, source.ErrUnavailable
		}
		data, err := s.conn.AlbumArt(uri)
		if err != nil {
			// mpd answers an error when the directory has no cover.
			s.log.Debug("no album art from mpd", zap.String("uri", uri), zap.Error(err))
			return nil, nil
		}
		return data, nil
	}
}

// Close closes the connection.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

func parseState(v string) track.State {
	switch v {
	case "play":
		return track.StatePlaying
	case "pause":
		return track.StatePaused
	default:
		return track.StateStopped
	}
}

// seconds parses mpd's fractional seconds; "Time" uses whole seconds and
// status "time" is "elapsed:total".
func seconds(v string) time.Duration {
	if i := strings.IndexByte(v, ':'); i >= 0 {
		v = v[i+1:]
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}

func baseName(file string) string {
	if i := strings.LastIndexByte(file, '/'); i >= 0 {
		file = file[i+1:]
	}
	if i := strings.LastIndexByte(file, '.'); i > 0 {
		file = file[:i]
	}
	return file
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
