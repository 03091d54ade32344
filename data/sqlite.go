package data

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite database handle
var (
	db     *sql.DB
	dbOnce sync.Once
	dbPath string
	dbErr  error
)

// Fetch is one attempt to load a location or marker source
type Fetch struct {
	ID        int64         `json:"id"`
	Source    string        `json:"source"`
	Kind      string        `json:"kind"`
	Records   int           `json:"records"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	FetchedAt time.Time     `json:"fetched_at"`
}

// initDB initializes the SQLite database. A failure is kept and returned
// to every later caller.
func initDB() error {
	dbOnce.Do(func() {
		dbPath = filepath.Join(Dir(), "fetches.db")

		var err error
		db, err = sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=10000")
		if err != nil {
			dbErr = fmt.Errorf("failed to open database: %w", err)
			return
		}

		// SQLite works best with limited connections
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS fetches (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				source      TEXT NOT NULL,
				kind        TEXT NOT NULL,
				records     INTEGER NOT NULL DEFAULT 0,
				error       TEXT,
				duration_ms INTEGER NOT NULL DEFAULT 0,
				fetched_at  DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_fetches_fetched_at ON fetches(fetched_at);
		`)
		if err != nil {
			dbErr = fmt.Errorf("failed to create tables: %w", err)
			return
		}

		fmt.Println("[data] SQLite database initialized at", dbPath)
	})
	return dbErr
}

// getDB returns the database handle, initializing if needed
func getDB() (*sql.DB, error) {
	if err := initDB(); err != nil {
		return nil, err
	}
	return db, nil
}

// RecordFetch stores the outcome of a source fetch
func RecordFetch(f *Fetch) error {
	db, err := getDB()
	if err != nil {
		return err
	}
	if f.FetchedAt.IsZero() {
		f.FetchedAt = time.Now()
	}

	var errText sql.NullString
	if f.Error != "" {
		errText = sql.NullString{String: f.Error, Valid: true}
	}

	res, err := db.Exec(`
		INSERT INTO fetches (source, kind, records, error, duration_ms, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, f.Source, f.Kind, f.Records, errText, f.Duration.Milliseconds(), f.FetchedAt)
	if err != nil {
		return fmt.Errorf("insert fetch: %w", err)
	}
	f.ID, _ = res.LastInsertId()
	return nil
}

// RecentFetches returns the latest fetches, newest first
func RecentFetches(limit int) ([]*Fetch, error) {
	db, err := getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(`
		SELECT id, source, kind, records, error, duration_ms, fetched_at
		FROM fetches ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query fetches: %w", err)
	}
	defer rows.Close()

	var result []*Fetch
	for rows.Next() {
		f := &Fetch{}
		var errText sql.NullString
		var ms int64
		if err := rows.Scan(&f.ID, &f.Source, &f.Kind, &f.Records, &errText, &ms, &f.FetchedAt); err != nil {
			continue
		}
		f.Error = errText.String
		f.Duration = time.Duration(ms) * time.Millisecond
		result = append(result, f)
	}
	return result, rows.Err()
}

// FetchStats returns the number of recorded fetches and how many failed
func FetchStats() (total int, failed int, err error) {
	db, err := getDB()
	if err != nil {
		return 0, 0, err
	}
	err = db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN error IS NOT NULL THEN 1 ELSE 0 END), 0)
		FROM fetches
	`).Scan(&total, &failed)
	return total, failed, err
}
