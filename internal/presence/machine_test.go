package presence

import (
	"context"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/presence/internal/artcache"
	"github.com/llehouerou/presence/internal/track"
)

const fallbackURL = "https://img.test/fallback.png"

type harness struct {
	ctx      context.Context
	loop     *fakeLoop
	source   *fakeSource
	sink     *fakeSink
	cache    *artcache.Cache
	produced atomic.Int32
	release  chan struct{}
	m        *Machine
}

// newHarness builds a machine whose artwork producer blocks until release
// is closed when blocking is true.
func newHarness(t *testing.T, blocking bool) *harness {
	t.Helper()
	h := &harness{
		ctx:     context.Background(),
		loop:    newFakeLoop(),
		source:  &fakeSource{},
		sink:    &fakeSink{},
		release: make(chan struct{}),
	}
	if !blocking {
		close(h.release)
	}
	h.cache = artcache.New(artcache.ProducerFunc(func(ctx context.Context, tr *track.Track) (string, error) {
		h.produced.Add(1)
		select {
		case <-h.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
		return "https://img.test/" + tr.ID + ".png", nil
	}))
	t.Cleanup(func() {
		select {
		case <-h.release:
		default:
			close(h.release)
		}
		h.cache.Close()
	})

	h.m = New(Deps{
		Source:  h.source,
		Artwork: h.cache,
		Sink:    h.sink,
		Loop:    h.loop,
	}, WithFallbackImage(fallbackURL), WithTimerSlack(0))
	return h
}

func song(id string, d time.Duration) *track.Track {
	return &track.Track{
		ID:       id,
		Title:    "Title " + id,
		Artist:   "Artist",
		Album:    "Album",
		Duration: d,
	}
}

func songWithArt(id string, d time.Duration) *track.Track {
	t := song(id, d)
	t.Artwork = func(context.Context) ([]byte, error) { return []byte("png"), nil }
	return t
}

func TestScenarioA_StartEmitsAndArmsTimer(t *testing.T) {
	h := newHarness(t, false)
	h.source.play(song("t1", 180*time.Second), 0)

	h.m.Tick(h.ctx)

	require.Len(t, h.sink.updates, 1)
	snap := h.sink.last()
	assert.Equal(t, "Title t1", snap.Title)
	assert.Equal(t, "Artist", snap.Artist)
	assert.Equal(t, "Album", snap.Album)
	assert.Equal(t, h.loop.now, snap.Start)
	assert.Equal(t, h.loop.now.Add(180*time.Second), snap.End)
	assert.True(t, h.m.Active())

	require.Len(t, h.loop.timers, 1)
	assert.Equal(t, 180*time.Second, h.loop.timers[0].d)
}

func TestStart_MidTrackTimestamps(t *testing.T) {
	h := newHarness(t, false)
	h.source.play(song("t1", 200*time.Second), 50*time.Second)

	h.m.Tick(h.ctx)

	snap := h.sink.last()
	assert.Equal(t, h.loop.now.Add(-50*time.Second), snap.Start)
	assert.Equal(t, h.loop.now.Add(150*time.Second), snap.End)
	assert.Equal(t, 150*time.Second, h.loop.lastTimer().d)
}

func TestTimerSlack(t *testing.T) {
	h := newHarness(t, false)
	h.m = New(Deps{Source: h.source, Artwork: h.cache, Sink: h.sink, Loop: h.loop}, WithTimerSlack(2*time.Second))
	h.source.play(song("t1", 10*time.Second), 0)

	h.m.Tick(h.ctx)

	assert.Equal(t, 12*time.Second, h.loop.lastTimer().d)
	assert.Equal(t, h.loop.now.Add(10*time.Second), h.sink.last().End)
}

func TestScenarioB_SameTrackIsNoop(t *testing.T) {
	h := newHarness(t, false)
	h.source.play(song("t1", 180*time.Second), 0)

	h.m.Tick(h.ctx)
	h.source.play(song("t1", 180*time.Second), 5*time.Second)
	h.m.Tick(h.ctx)
	h.m.Tick(h.ctx)

	assert.Len(t, h.sink.updates, 1)
	assert.Len(t, h.loop.timers, 1)
	assert.Equal(t, 0, h.sink.clears)
}

func TestScenarioC_TimerFireForcesRefresh(t *testing.T) {
	h := newHarness(t, false)
	h.source.play(song("t1", 180*time.Second), 0)
	h.m.Tick(h.ctx)

	// Same track still reported (e.g. repeat-one) when the timer fires.
	h.loop.now = h.loop.now.Add(180 * time.Second)
	h.source.play(song("t1", 180*time.Second), 0)
	h.loop.fire(h.ctx, h.loop.timers[0])

	require.Len(t, h.sink.updates, 2)
	assert.Equal(t, h.loop.now, h.sink.last().Start)
	assert.Equal(t, 1, h.loop.outstanding())
}

func TestTimerFire_NextTrack(t *testing.T) {
	h := newHarness(t, false)
	h.source.play(song("t1", 180*time.Second), 0)
	h.m.Tick(h.ctx)

	h.source.play(song("t2", 60*time.Second), 0)
	h.loop.fire(h.ctx, h.loop.timers[0])

	require.Len(t, h.sink.updates, 2)
	assert.Equal(t, "t2", h.sink.last().TrackKey)
	assert.Equal(t, 60*time.Second, h.loop.lastTimer().d)
}

func TestScenarioD_NoArtworkUsesFallback(t *testing.T) {
	h := newHarness(t, false)
	h.source.play(song("bare", 100*time.Second), 0)

	h.m.Tick(h.ctx)

	assert.Equal(t, fallbackURL, h.sink.last().ArtworkURL)
	assert.Equal(t, int32(0), h.produced.Load())
	assert.Equal(t, 0, h.loop.postedCount())
}

func TestScenarioE_StopClearsOnceAndCancelsTimer(t *testing.T) {
	h := newHarness(t, false)
	h.source.play(song("t1", 180*time.Second), 30*time.Second)
	h.m.Tick(h.ctx)

	h.source.stop()
	h.m.Tick(h.ctx)
	h.m.Tick(h.ctx)

	assert.Equal(t, 1, h.sink.clears)
	assert.False(t, h.m.Active())
	assert.True(t, h.loop.timers[0].stopped)
	assert.Equal(t, 0, h.loop.outstanding())

	// The cancelled timer fires anyway (lost race): nothing happens.
	h.loop.fire(h.ctx, h.loop.timers[0])
	assert.Len(t, h.sink.updates, 1)
	assert.Equal(t, 1, h.sink.clears)
}

func TestTrackChange_CancelsAndRearms(t *testing.T) {
	h := newHarness(t, false)
	h.source.play(song("t1", 180*time.Second), 0)
	h.m.Tick(h.ctx)

	h.source.play(song("t2", 90*time.Second), 0)
	h.m.Tick(h.ctx)

	require.Len(t, h.sink.updates, 2)
	assert.Equal(t, "t2", h.sink.last().TrackKey)
	assert.True(t, h.loop.timers[0].stopped)
	assert.Equal(t, 1, h.loop.outstanding())

	// A stale fire from the first timer is dropped.
	h.loop.fire(h.ctx, h.loop.timers[0])
	assert.Len(t, h.sink.updates, 2)
	assert.Equal(t, 1, h.loop.outstanding())
}

func TestPause_ClearsPresence(t *testing.T) {
	h := newHarness(t, false)
	h.source.play(song("t1", 180*time.Second), 0)
	h.m.Tick(h.ctx)

	h.source.pause()
	h.m.Tick(h.ctx)

	assert.Equal(t, 1, h.sink.clears)
	assert.False(t, h.m.Active())
}

func TestSourceError_TreatedAsStopped(t *testing.T) {
	h := newHarness(t, false)
	h.source.fail()
	h.m.Tick(h.ctx)
	assert.Equal(t, 0, h.sink.clears)

	h.source.play(song("t1", 180*time.Second), 0)
	h.m.Tick(h.ctx)
	h.source.fail()
	h.m.Tick(h.ctx)

	assert.Equal(t, 1, h.sink.clears)
	assert.False(t, h.m.Active())
}

func TestUnknownDuration_NoTimer(t *testing.T) {
	h := newHarness(t, false)
	h.source.play(song("stream", 0), 42*time.Second)

	h.m.Tick(h.ctx)

	snap := h.sink.last()
	assert.False(t, snap.HasEnd())
	assert.Equal(t, h.loop.now.Add(-42*time.Second), snap.Start)
	assert.Empty(t, h.loop.timers)
}

func TestPendingArtwork_RefreshesWhenReady(t *testing.T) {
	h := newHarness(t, true)
	h.source.play(songWithArt("t1", 180*time.Second), 0)

	h.m.Tick(h.ctx)
	require.Len(t, h.sink.updates, 1)
	assert.Equal(t, fallbackURL, h.sink.last().ArtworkURL)

	// A second poll while pending neither emits nor starts a second upload.
	h.m.Tick(h.ctx)
	assert.Len(t, h.sink.updates, 1)

	close(h.release)
	require.Eventually(t, func() bool { return h.loop.postedCount() == 1 }, time.Second, time.Millisecond)
	h.loop.drain(h.ctx)

	require.Len(t, h.sink.updates, 2)
	assert.Equal(t, "https://img.test/t1.png", h.sink.last().ArtworkURL)
	assert.Equal(t, int32(1), h.produced.Load())
	assert.Equal(t, 1, h.loop.outstanding())
}

func TestPendingArtwork_StaleTrackIgnored(t *testing.T) {
	h := newHarness(t, true)
	h.source.play(songWithArt("t1", 180*time.Second), 0)
	h.m.Tick(h.ctx)

	h.source.play(song("t2", 180*time.Second), 0)
	h.m.Tick(h.ctx)
	require.Len(t, h.sink.updates, 2)

	close(h.release)
	require.Eventually(t, func() bool { return h.loop.postedCount() == 1 }, time.Second, time.Millisecond)
	h.loop.drain(h.ctx)

	assert.Len(t, h.sink.updates, 2)
}

func TestStop(t *testing.T) {
	h := newHarness(t, false)
	h.m.Stop()
	assert.Equal(t, 0, h.sink.clears)

	h.source.play(song("t1", 180*time.Second), 0)
	h.m.Tick(h.ctx)
	h.m.Stop()

	assert.Equal(t, 1, h.sink.clears)
	assert.Equal(t, 0, h.loop.outstanding())
}

func TestTruncatesFields(t *testing.T) {
	h := newHarness(t, false)
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}
	tr := song("t1", time.Minute)
	tr.Title = string(long)
	h.source.play(tr, 0)

	h.m.Tick(h.ctx)

	assert.Len(t, h.sink.last().Title, MaxFieldLength)
}

// For any poll sequence, clears match Active->Idle transitions exactly.
func TestProperty_ClearsMatchDeactivations(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tracks := []*track.Track{song("a", time.Minute), song("b", time.Minute), song("c", 0)}

	for run := range 50 {
		h := newHarness(t, false)
		wasActive := false
		deactivations := 0

		for range 200 {
			switch rng.Intn(6) {
			case 0:
				h.source.stop()
			case 1:
				h.source.pause()
			case 2:
				h.source.fail()
			default:
				h.source.play(tracks[rng.Intn(len(tracks))], time.Duration(rng.Intn(60))*time.Second)
			}

			if rng.Intn(5) == 0 && len(h.loop.timers) > 0 {
				h.loop.fire(h.ctx, h.loop.timers[rng.Intn(len(h.loop.timers))])
			} else {
				h.m.Tick(h.ctx)
			}

			if wasActive && !h.m.Active() {
				deactivations++
			}
			wasActive = h.m.Active()
			require.LessOrEqual(t, h.loop.outstanding(), 1, "run %d", run)
		}

		assert.Equal(t, deactivations, h.sink.clears, "run %d", run)
	}
}
