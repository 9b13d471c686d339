package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.PresenceUpdated()
	m.PresenceUpdated()
	m.PresenceCleared()
	m.CacheLookup("hit")
	m.CacheLookup("miss")
	m.CacheLookup("miss")
	m.Produced(nil, time.Second)
	m.Produced(errors.New("boom"), time.Second)

	assert.InDelta(t, 2, testutil.ToFloat64(m.updatesTotal), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.clearsTotal), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.cacheRequests.WithLabelValues("miss")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.producerCalls.WithLabelValues("error")), 0)
}

func TestMetrics_CacheEntries(t *testing.T) {
	m := New()
	m.CacheEntries(1, 5, 2)

	assert.InDelta(t, 5, testutil.ToFloat64(m.cacheEntries.WithLabelValues("ready")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.cacheEntries.WithLabelValues("failed")), 0)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.PresenceUpdated()
	m.PresenceCleared()
	m.PollFailed()
	m.CacheLookup("hit")
	m.Produced(nil, 0)
	m.CacheEntries(0, 0, 0)
}
