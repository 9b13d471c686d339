// Package app wires the player source, artwork cache, presence machine and
// sinks together and runs them until shutdown.
package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/llehouerou/presence/internal/artcache"
	"github.com/llehouerou/presence/internal/artwork"
	"github.com/llehouerou/presence/internal/config"
	"github.com/llehouerou/presence/internal/errmsg"
	"github.com/llehouerou/presence/internal/history"
	"github.com/llehouerou/presence/internal/logging"
	"github.com/llehouerou/presence/internal/metrics"
	"github.com/llehouerou/presence/internal/musicbrainz"
	"github.com/llehouerou/presence/internal/presence"
	"github.com/llehouerou/presence/internal/scheduler"
	"github.com/llehouerou/presence/internal/sink"
	"github.com/llehouerou/presence/internal/source"
)

// ErrLocked is returned when another instance holds the lock.
var ErrLocked = errors.New("another presence instance is running")

// Option overrides a collaborator, mainly for tests.
type Option func(*options)

type options struct {
	source   source.Source
	producer artcache.Producer
	sinks    []presence.Sink
}

// WithSource uses s instead of the configured player.
func WithSource(s source.Source) Option {
	return func(o *options) { o.source = s }
}

// WithProducer uses p instead of the image host uploader.
func WithProducer(p artcache.Producer) Option {
	return func(o *options) { o.producer = p }
}

// WithSinks uses the given sinks instead of the configured ones.
func WithSinks(sinks ...presence.Sink) Option {
	return func(o *options) { o.sinks = sinks }
}

// App owns every long-lived component of a running daemon.
type App struct {
	cfg     *config.Config
	log     *zap.Logger
	metrics *metrics.Metrics

	lock    *flock.Flock
	source  source.Source
	cache   *artcache.Cache
	sinks   sink.Multi
	history *history.Store
	sched   *scheduler.Scheduler
	machine *presence.Machine
}

// New validates cfg, takes the single-instance lock and builds the
// components. The cache is filled from disk before New returns.
func New(cfg *config.Config, log *zap.Logger, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		cfg:     cfg,
		log:     log,
		metrics: metrics.New(),
	}
	if a.log == nil {
		a.log = zap.NewNop()
	}

	if err := a.acquireLock(); err != nil {
		return nil, err
	}

	ok := false
	defer func() {
		if !ok {
			a.release()
		}
	}()

	a.source = o.source
	if a.source == nil {
		src, err := openSource(cfg, logging.Component(a.log, "source"))
		if err != nil {
			return nil, errmsg.Wrap(errmsg.OpOpenPlayer, err)
		}
		a.source = src
	}

	producer := o.producer
	if producer == nil {
		var opts []artwork.ProducerOption
		if cfg.MusicBrainzEnabled() {
			opts = append(opts, artwork.WithCoverFinder(musicbrainz.NewClient()))
		}
		producer = artwork.NewProducer(
			artwork.NewUploader("", cfg.APIKey),
			artwork.DefaultSize,
			logging.Component(a.log, "artwork"),
			opts...,
		)
	}
	a.cache = artcache.New(producer,
		artcache.WithMaxEntries(cfg.Cache.MaxEntries),
		artcache.WithLogger(logging.Component(a.log, "cache")),
		artcache.WithMetrics(a.metrics),
	)
	if n, err := a.cache.LoadFrom(cfg.Cache.Dir); err != nil {
		a.log.Warn("could not load artwork cache", zap.String("dir", cfg.Cache.Dir), zap.Error(err))
	} else {
		a.log.Info("artwork cache loaded", zap.Int("entries", n))
	}

	if o.sinks != nil {
		a.sinks = sink.Multi(o.sinks)
	} else {
		sinks, err := a.openSinks()
		if err != nil {
			return nil, errmsg.Wrap(errmsg.OpOpenSinks, err)
		}
		a.sinks = sinks
	}

	if cfg.FallbackImage == "" {
		a.log.Warn("no fallback image configured; tracks without artwork show none")
	}

	a.sched = scheduler.New(logging.Component(a.log, "scheduler"))
	a.machine = presence.New(presence.Deps{
		Source:  a.source,
		Artwork: a.cache,
		Sink:    a.sinks,
		Loop:    a.sched,
		Log:     logging.Component(a.log, "presence"),
		Metrics: a.metrics,
	},
		presence.WithFallbackImage(cfg.FallbackImage),
		presence.WithTimerSlack(cfg.TimerSlack),
	)

	a.sched.Every("poll", cfg.PollInterval, a.machine.Tick)
	a.sched.Every("heartbeat", cfg.HeartbeatInterval, a.sinks.Heartbeat, scheduler.Delayed())
	a.sched.Every("checkpoint", cfg.Cache.CheckpointInterval, a.checkpoint, scheduler.Async(), scheduler.Delayed())

	ok = true
	return a, nil
}

// Run blocks until ctx is cancelled, then clears the presence, flushes the
// cache to disk and releases every resource.
func (a *App) Run(ctx context.Context) error {
	if addr := a.cfg.Metrics.Listen; addr != "" {
		go func() {
			if err := a.metrics.Serve(ctx, addr); err != nil {
				a.log.Warn("metrics listener failed", zap.String("addr", addr), zap.Error(err))
			}
		}()
	}

	a.log.Info("presence started",
		zap.String("player", a.cfg.Player.Source),
		zap.Duration("poll", a.cfg.PollInterval))
	err := a.sched.Run(ctx)

	// The loop has stopped; the machine is now safe to drive from here.
	a.machine.Stop()
	a.shutdown()
	return err
}

// Metrics exposes the registry, for tests and the CLI.
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

func (a *App) checkpoint(context.Context) {
	n, err := a.cache.SaveTo(a.cfg.Cache.Dir)
	if err != nil {
		a.log.Warn("artwork cache checkpoint failed", zap.Error(err))
		return
	}
	a.log.Debug("artwork cache checkpoint", zap.Int("entries", n))
}

func (a *App) shutdown() {
	a.cache.Close()
	if n, err := a.cache.SaveTo(a.cfg.Cache.Dir); err != nil {
		a.log.Warn("could not save artwork cache", zap.Error(err))
	} else {
		a.log.Info("artwork cache saved", zap.Int("entries", n))
	}
	a.release()
	a.log.Info("presence stopped")
}

// release closes what New opened, in reverse order. It is safe on a
// partially built App.
func (a *App) release() {
	if err := a.sinks.Close(); err != nil {
		a.log.Warn("closing sinks", zap.Error(err))
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.log.Warn("closing history", zap.Error(err))
		}
	}
	if a.source != nil {
		if err := a.source.Close(); err != nil {
			a.log.Debug("closing source", zap.Error(err))
		}
	}
	if a.lock != nil {
		_ = a.lock.Unlock()
	}
}

func (a *App) acquireLock() error {
	path := a.cfg.LockPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errmsg.WrapWith(errmsg.OpAcquireLock, path, err)
	}
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return errmsg.WrapWith(errmsg.OpAcquireLock, path, err)
	}
	if !locked {
		return ErrLocked
	}
	a.lock = lock
	return nil
}
