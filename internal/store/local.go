// Package store persists patient data for the domain tools and the chat
// transcripts for the session layer.
//
// LocalStore keeps medications, dose logs and symptoms in one SQLite file.
// Two drivers are supported: "sqlite3" (github.com/mattn/go-sqlite3, cgo) and
// "sqlite" (modernc.org/sqlite, pure Go). The database is opened with a single
// connection so concurrent sessions serialize on it.
//
// TranscriptStore keeps one JSON file per patient holding the ordered
// {role, content} log shown by the CLI history command.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"healthguard/internal/logging"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names.
const (
	DriverMattn   = "sqlite3"
	DriverModernc = "sqlite"
)

// ErrNotFound is returned when a row addressed by id does not exist.
var ErrNotFound = errors.New("not found")

// timeLayout is how timestamps are stored in TEXT columns.
const timeLayout = time.RFC3339Nano

// LocalStore is the SQLite-backed store for medications and symptoms.
type LocalStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
	driver string
	now    func() time.Time
}

// NewLocalStore opens the database at path with the default cgo driver.
func NewLocalStore(path string) (*LocalStore, error) {
	return Open(DriverMattn, path)
}

// Open initializes the SQLite database at path using driver.
func Open(driver, path string) (*LocalStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "OpenLocalStore")
	defer timer.Stop()

	switch driver {
	case DriverMattn, DriverModernc:
	case "":
		driver = DriverMattn
	default:
		return nil, fmt.Errorf("unsupported sqlite driver %q", driver)
	}

	logging.Store("Initializing LocalStore at path: %s (driver=%s)", path, driver)

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			logging.StoreError("Failed to create directory %s: %v", dir, err)
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		logging.StoreError("Failed to open database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		logging.StoreDebug("Failed to enable foreign keys: %v", err)
	}

	s := &LocalStore{db: db, dbPath: path, driver: driver, now: time.Now}
	if err := s.initialize(); err != nil {
		logging.StoreError("Failed to initialize schema: %v", err)
		db.Close()
		return nil, err
	}

	logging.Store("LocalStore initialization complete")
	return s, nil
}

// Close closes the database.
func (s *LocalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Path returns the database path.
func (s *LocalStore) Path() string { return s.dbPath }

// Driver returns the database/sql driver name in use.
func (s *LocalStore) Driver() string { return s.driver }

// Ping verifies the database is reachable.
func (s *LocalStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *LocalStore) timestamp() string {
	return s.now().Format(timeLayout)
}

func parseTime(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	for _, layout := range []string{timeLayout, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timeLayout)
}
