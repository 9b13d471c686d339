// Package history records what was shown as presence in a SQLite database.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/llehouerou/presence/internal/db"
)

const dbFileName = "history.db"

// Play is one displayed track.
type Play struct {
	ID         int64
	TrackKey   string
	Title      string
	Artist     string
	Album      string
	ArtworkURL string
	StartedAt  time.Time
	EndedAt    time.Time // zero while playing
}

// Store persists plays.
type Store struct {
	db *sql.DB
}

// DefaultPath is the database location under the XDG data directory.
func DefaultPath(app string) (string, error) {
	return xdg.DataFile(filepath.Join(app, dbFileName))
}

// Open opens or creates the database at path. ":memory:" opens a private
// in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer; also keeps an in-memory database on a single connection.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		conn.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}
	if err := initSchema(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: conn}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Start ends every open play at endedAt and records p as playing, in one
// transaction. Starting the same play twice is a no-op.
func (s *Store) Start(ctx context.Context, p Play, endedAt time.Time) error {
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := endOpen(ctx, tx, endedAt, p); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO plays (track_key, title, artist, album, artwork_url, started_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(track_key, started_at) DO UPDATE SET
				artwork_url = COALESCE(NULLIF(excluded.artwork_url, ''), plays.artwork_url),
				ended_at = NULL
		`, p.TrackKey, p.Title, p.Artist, p.Album, p.ArtworkURL, p.StartedAt.Unix())
		return err
	})
}

// SetArtwork records the artwork URL of the open play of key.
func (s *Store) SetArtwork(ctx context.Context, key, url string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE plays SET artwork_url = ?
		WHERE track_key = ? AND ended_at IS NULL
	`, url, key)
	return err
}

// EndAll marks every open play as ended at t.
func (s *Store) EndAll(ctx context.Context, t time.Time) error {
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return endOpen(ctx, tx, t, Play{})
	})
}

// endOpen ends open plays other than keep.
func endOpen(ctx context.Context, tx *sql.Tx, t time.Time, keep Play) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE plays SET ended_at = ?
		WHERE ended_at IS NULL AND NOT (track_key = ? AND started_at = ?)
	`, t.Unix(), keep.TrackKey, keep.StartedAt.Unix())
	return err
}

// Recent returns up to limit plays, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Play, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, track_key, title, artist, album, artwork_url, started_at, ended_at
		FROM plays
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plays []Play
	for rows.Next() {
		var (
			p                  Play
			artist, album, art sql.NullString
			started            int64
			ended              sql.NullInt64
		)
		if err := rows.Scan(&p.ID, &p.TrackKey, &p.Title, &artist, &album, &art, &started, &ended); err != nil {
			return nil, err
		}
		p.Artist = db.NullStringValue(artist)
		p.Album = db.NullStringValue(album)
		p.ArtworkURL = db.NullStringValue(art)
		p.StartedAt = time.Unix(started, 0)
		p.EndedAt = db.TimeValue(ended)
		plays = append(plays, p)
	}
	return plays, rows.Err()
}

// Count returns the number of recorded plays.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM plays`).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return n, err
}
