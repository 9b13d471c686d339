// Package artcache maps track identities to remote artwork URLs.
//
// Every identity is computed at most once per process: concurrent callers
// share a single Future, failures are remembered and not retried until the
// entry is evicted. Settled entries are bounded by a least-recently-queried
// policy; pending entries are never evicted. The resolved subset can be
// checkpointed to a directory (one file per entry) and replayed at startup.
package artcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/llehouerou/presence/internal/metrics"
	"github.com/llehouerou/presence/internal/track"
)

const (
	DefaultMaxEntries     = 2048
	defaultProduceTimeout = 2 * time.Minute
)

// ErrNoArtwork is the result for identities that have no artwork to produce.
var ErrNoArtwork = errors.New("no artwork")

var errEmptyURL = errors.New("producer returned empty url")

// Producer computes the remote artwork URL for a track. It may be slow.
type Producer interface {
	Produce(ctx context.Context, t *track.Track) (string, error)
}

// ProducerFunc adapts a function to Producer.
type ProducerFunc func(ctx context.Context, t *track.Track) (string, error)

func (f ProducerFunc) Produce(ctx context.Context, t *track.Track) (string, error) {
	return f(ctx, t)
}

// Option configures a Cache.
type Option func(*Cache)

// WithMaxEntries bounds the number of settled entries.
func WithMaxEntries(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Cache) {
		if log != nil {
			c.log = log
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithProduceTimeout bounds a single producer invocation.
func WithProduceTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.produceTimeout = d
		}
	}
}

// Cache is safe for concurrent use.
type Cache struct {
	producer       Producer
	log            *zap.Logger
	metrics        *metrics.Metrics
	maxEntries     int
	produceTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending map[string]*Future
	settled *lru.Cache[string, *Future]

	saveMu sync.Mutex
}

// New creates a cache around producer.
func New(producer Producer, opts ...Option) *Cache {
	c := &Cache{
		producer:       producer,
		log:            zap.NewNop(),
		maxEntries:     DefaultMaxEntries,
		produceTimeout: defaultProduceTimeout,
		pending:        make(map[string]*Future),
	}
	for _, opt := range opts {
		opt(c)
	}

	settled, err := lru.NewWithEvict(c.maxEntries, func(key string, _ *Future) {
		c.log.Debug("evicted artwork entry", zap.String("key", key))
	})
	if err != nil {
		// Only possible for a non-positive size, which WithMaxEntries rejects.
		panic(fmt.Sprintf("artcache: %v", err))
	}
	c.settled = settled
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

// Get returns the future for id, starting the computation if no entry
// exists. Identities without artwork resolve immediately to ErrNoArtwork
// without invoking the producer and are not stored.
func (c *Cache) Get(id track.Identity) *Future {
	key := id.Key()
	if !track.ValidKey(key) {
		return resolvedFuture("", track.ErrInvalidKey)
	}

	c.mu.Lock()
	if f, ok := c.pending[key]; ok {
		c.mu.Unlock()
		c.metrics.CacheLookup("hit")
		return f
	}
	if f, ok := c.settled.Get(key); ok {
		c.mu.Unlock()
		c.metrics.CacheLookup("hit")
		return f
	}

	t := id.Track()
	if !t.HasArtwork() {
		c.mu.Unlock()
		c.metrics.CacheLookup("miss")
		return resolvedFuture("", ErrNoArtwork)
	}

	f := newFuture()
	c.pending[key] = f
	c.wg.Add(1)
	c.updateGaugesLocked()
	c.mu.Unlock()

	c.metrics.CacheLookup("miss")
	go c.produce(key, t, f)
	return f
}

func (c *Cache) produce(key string, t *track.Track, f *Future) {
	defer c.wg.Done()

	ctx, cancel := context.WithTimeout(c.ctx, c.produceTimeout)
	defer cancel()

	start := time.Now()
	url, err := c.producer.Produce(ctx, t)
	if err == nil && url == "" {
		err = errEmptyURL
	}
	c.metrics.Produced(err, time.Since(start))

	if err != nil {
		c.log.Warn("artwork production failed",
			zap.String("key", key),
			zap.Stringer("track", t),
			zap.Error(err))
	} else {
		c.log.Info("artwork ready",
			zap.String("key", key),
			zap.Stringer("track", t),
			zap.String("url", url),
			zap.Duration("took", time.Since(start)))
	}

	c.mu.Lock()
	delete(c.pending, key)
	c.settled.Add(key, f)
	f.resolve(url, err)
	c.updateGaugesLocked()
	c.mu.Unlock()
}

// Remove evicts a settled entry so the next Get recomputes it.
// Pending entries are never removed.
func (c *Cache) Remove(id track.Identity) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := c.settled.Remove(id.Key())
	if removed {
		c.updateGaugesLocked()
	}
	return removed
}

// Len returns the number of entries, pending included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending) + c.settled.Len()
}

// Stats counts entries by state.
type Stats struct {
	Pending int
	Ready   int
	Failed  int
}

// Total returns the number of entries.
func (s Stats) Total() int {
	return s.Pending + s.Ready + s.Failed
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statsLocked()
}

func (c *Cache) statsLocked() Stats {
	s := Stats{Pending: len(c.pending)}
	for _, f := range c.settled.Values() {
		if f.succeeded() {
			s.Ready++
		} else {
			s.Failed++
		}
	}
	return s
}

func (c *Cache) updateGaugesLocked() {
	if c.metrics == nil {
		return
	}
	s := c.statsLocked()
	c.metrics.CacheEntries(s.Pending, s.Ready, s.Failed)
}

// Close cancels in-flight computations and waits for them to settle.
func (c *Cache) Close() {
	c.cancel()
	c.wg.Wait()
}
