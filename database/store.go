package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Store owns the metadata database (dataset registry + conversation
// history) and the per-dataset isolated table files under dataDir.
type Store struct {
	db      *sql.DB
	dataDir string
	log     *zap.Logger

	// Per-dataset mutexes. History appends and dataset deletion take the
	// same lock so a turn can never be written into a half-deleted dataset.
	locks sync.Map // dataset id -> *sync.Mutex
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS datasets (
	id               TEXT PRIMARY KEY,
	original_filename TEXT NOT NULL,
	display_name     TEXT NOT NULL DEFAULT '',
	byte_size        INTEGER NOT NULL,
	row_count        INTEGER NOT NULL,
	column_count     INTEGER NOT NULL,
	columns_json     TEXT NOT NULL,
	mapping_json     TEXT NOT NULL,
	table_name       TEXT NOT NULL,
	created_at       INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS conversation_turns (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	dataset_id TEXT NOT NULL,
	user_text  TEXT NOT NULL,
	agent_text TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_turns_dataset ON conversation_turns(dataset_id, id);
`

// Open opens (or creates) the metadata database in dataDir. Isolated
// table files live under dataDir/sources/<id>.
func Open(dataDir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dataDir, "metadata.db"))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Single connection avoids "database is locked" with modernc sqlite.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db, dataDir: dataDir, log: logger}, nil
}

// Close closes the metadata database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DataDir returns the root directory for dataset storage.
func (s *Store) DataDir() string {
	return s.dataDir
}

func (s *Store) datasetLock(id string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// TableNameFor derives the isolated table name for a dataset id.
func TableNameFor(datasetID string) string {
	compact := strings.ReplaceAll(datasetID, "-", "")
	if len(compact) > 12 {
		compact = compact[:12]
	}
	return "data_" + compact
}

// datasetDir is where a dataset's isolated table file lives.
func (s *Store) datasetDir(id string) string {
	return filepath.Join(s.dataDir, "sources", id)
}

// datasetDBPath is the isolated table file for a dataset.
func (s *Store) datasetDBPath(id string) string {
	return filepath.Join(s.datasetDir(id), "data.db")
}

// openDatasetDB opens the isolated table file for a dataset. The caller
// must close the handle. Returns ErrNotFound when the file is absent and
// create is false.
func (s *Store) openDatasetDB(id string, create bool) (*sql.DB, error) {
	path := s.datasetDBPath(id)
	if !create {
		if _, err := os.Stat(path); err != nil {
			return nil, ErrNotFound
		}
	} else {
		if err := os.MkdirAll(s.datasetDir(id), 0o755); err != nil {
			return nil, fmt.Errorf("creating dataset directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngine, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrEngine, err)
	}
	return db, nil
}
