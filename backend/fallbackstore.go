package backend

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/tayokelay/nowplaying/backend/session"

	_ "modernc.org/sqlite"
)

const fallbackStoreSchema = `
CREATE TABLE IF NOT EXISTS last_session_state (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

var fallbackStorePragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 10000",
	"PRAGMA synchronous = NORMAL",
}

// FallbackStore persists last-known session values (title, artist, album,
// artwork ref, duration, last player package) to a small SQLite database
// so they survive process restarts.
type FallbackStore struct {
	db *sql.DB
}

var _ session.KeyValueStore = (*FallbackStore)(nil)

func NewFallbackStore(path string) (*FallbackStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating state dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}
	if path == ":memory:" {
		// each conn to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}
	for _, pragma := range fallbackStorePragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(fallbackStoreSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing state schema: %w", err)
	}
	return &FallbackStore{db: db}, nil
}

func (f *FallbackStore) GetString(key string) (string, error) {
	var val string
	err := f.db.QueryRow(
		"SELECT value FROM last_session_state WHERE key = ?", key,
	).Scan(&val)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return val, err
}

func (f *FallbackStore) SetString(key, value string) error {
	_, err := f.db.Exec(
		`INSERT INTO last_session_state (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

func (f *FallbackStore) GetInt64(key string) (int64, error) {
	s, err := f.GetString(key)
	if err != nil || s == "" {
		return 0, err
	}
	return strconv.ParseInt(s, 10, 64)
}

func (f *FallbackStore) SetInt64(key string, value int64) error {
	return f.SetString(key, strconv.FormatInt(value, 10))
}

func (f *FallbackStore) Clear() error {
	_, err := f.db.Exec("DELETE FROM last_session_state")
	return err
}

func (f *FallbackStore) Close() error {
	return f.db.Close()
}
