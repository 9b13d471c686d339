package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/presence/internal/presence"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Reopening an existing database keeps the schema.
	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_StartEndsPrevious(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	t0 := time.Unix(1700000000, 0)

	require.NoError(t, s.Start(ctx, Play{TrackKey: "a", Title: "A", StartedAt: t0}, t0))
	require.NoError(t, s.Start(ctx, Play{TrackKey: "b", Title: "B", Artist: "X", StartedAt: t0.Add(time.Minute)}, t0.Add(time.Minute)))

	plays, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, plays, 2)

	assert.Equal(t, "b", plays[0].TrackKey)
	assert.Equal(t, "X", plays[0].Artist)
	assert.True(t, plays[0].EndedAt.IsZero())

	assert.Equal(t, "a", plays[1].TrackKey)
	assert.True(t, t0.Add(time.Minute).Equal(plays[1].EndedAt))
}

func TestStore_StartIsIdempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	t0 := time.Unix(1700000000, 0)

	p := Play{TrackKey: "a", Title: "A", StartedAt: t0}
	require.NoError(t, s.Start(ctx, p, t0))
	p.ArtworkURL = "https://img.test/a.png"
	require.NoError(t, s.Start(ctx, p, t0))

	plays, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, plays, 1)
	assert.Equal(t, "https://img.test/a.png", plays[0].ArtworkURL)
	assert.True(t, plays[0].EndedAt.IsZero())
}

func TestStore_RecentLimit(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	t0 := time.Unix(1700000000, 0)

	for i := range 5 {
		at := t0.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.Start(ctx, Play{TrackKey: string(rune('a' + i)), Title: "T", StartedAt: at}, at))
	}

	plays, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, plays, 2)
	assert.Equal(t, "e", plays[0].TrackKey)
	assert.Equal(t, "d", plays[1].TrackKey)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestSink_RecordsPlays(t *testing.T) {
	store := setupTestStore(t)
	sk := NewSink(store)
	now := time.Unix(1700000000, 0)
	sk.now = func() time.Time { return now }
	ctx := context.Background()

	snap := presence.Snapshot{TrackKey: "a", Title: "A", Artist: "X", Album: "Y", Start: now.Add(-10 * time.Second)}
	require.NoError(t, sk.Update(ctx, snap))

	// Artwork arrives later for the same track.
	snap.ArtworkURL = "https://img.test/a.png"
	require.NoError(t, sk.Update(ctx, snap))

	now = now.Add(3 * time.Minute)
	require.NoError(t, sk.Clear(ctx))

	plays, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, plays, 1)
	p := plays[0]
	assert.Equal(t, "A", p.Title)
	assert.Equal(t, "Y", p.Album)
	assert.Equal(t, "https://img.test/a.png", p.ArtworkURL)
	assert.True(t, snap.Start.Equal(p.StartedAt))
	assert.True(t, now.Equal(p.EndedAt))
}
