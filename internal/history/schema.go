package history

import (
	"database/sql"
)

const currentSchemaVersion = 1

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS plays (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			track_key TEXT NOT NULL,
			title TEXT NOT NULL,
			artist TEXT,
			album TEXT,
			artwork_url TEXT,
			started_at INTEGER NOT NULL,
			ended_at INTEGER,
			UNIQUE(track_key, started_at)
		);

		CREATE INDEX IF NOT EXISTS idx_plays_started_at ON plays(started_at);
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, currentSchemaVersion)
	return err
}
