package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/llehouerou/presence/internal/config"
	"github.com/llehouerou/presence/internal/discord"
	"github.com/llehouerou/presence/internal/history"
	"github.com/llehouerou/presence/internal/lastfm"
	"github.com/llehouerou/presence/internal/logging"
	"github.com/llehouerou/presence/internal/notify"
	"github.com/llehouerou/presence/internal/presence"
	"github.com/llehouerou/presence/internal/sink"
	"github.com/llehouerou/presence/internal/source"
	"github.com/llehouerou/presence/internal/source/mpd"
	"github.com/llehouerou/presence/internal/source/mpris"
)

func openSource(cfg *config.Config, log *zap.Logger) (source.Source, error) {
	p := cfg.Player
	switch p.Source {
	case source.KindMPD:
		return mpd.New(p.MPDNetwork, p.MPDAddress, p.MPDPassword, log), nil
	case source.KindMPRIS:
		return mpris.New(p.MPRISBusName, log)
	default:
		return nil, fmt.Errorf("unknown player source %q (want %q or %q)", p.Source, source.KindMPD, source.KindMPRIS)
	}
}

// openSinks builds the configured sinks. Discord is always present; the
// others are opt-in.
func (a *App) openSinks() (sink.Multi, error) {
	cfg := a.cfg
	sinks := sink.Multi{
		sink.NewAsync("discord",
			discord.New(cfg.ApplicationID, discord.WithLogger(logging.Component(a.log, "discord"))),
			a.log),
	}

	if cfg.HasLastfmConfig() {
		client := lastfm.New(cfg.Lastfm.APIKey, cfg.Lastfm.APISecret, cfg.Lastfm.SessionKey)
		sinks = append(sinks, sink.NewAsync("lastfm",
			lastfm.NewSink(client, logging.Component(a.log, "lastfm")), a.log))
	}

	if cfg.Notify.Enabled {
		n, err := notify.New()
		if err != nil {
			return closeOnError(sinks, fmt.Errorf("notifications: %w", err))
		}
		sinks = append(sinks, sink.NewAsync("notify", notify.NewSink(n), a.log))
	}

	if cfg.HistoryEnabled() {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return closeOnError(sinks, fmt.Errorf("open history: %w", err))
		}
		a.history = store
		sinks = append(sinks, sink.NewAsync("history", history.NewSink(store), a.log))
	}

	return sinks, nil
}

func closeOnError(sinks []presence.Sink, err error) (sink.Multi, error) {
	_ = sink.Multi(sinks).Close()
	return nil, err
}
