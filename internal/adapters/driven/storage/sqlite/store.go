package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/sspi-index/sspi-engine/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driven"
	"github.com/sspi-index/sspi-engine/internal/logger"
)

// DatabaseFile is the file name of the database inside the data directory.
const DatabaseFile = "sspi.db"

// Store is a unified SQLite-based storage that provides access to
// all store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store in dataDir.
// If dataDir is empty, defaults to ~/.sspi/data.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".sspi", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DatabaseFile)

	// WAL lets queries proceed while a partition is being replaced.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrateUp(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// RawStore returns a RawStore interface backed by this store.
func (s *Store) RawStore() driven.RawStore {
	return &rawStore{store: s}
}

// ObservationStore returns an ObservationStore interface backed by this store.
func (s *Store) ObservationStore() driven.ObservationStore {
	return &observationStore{store: s}
}

// MetadataStore returns a MetadataStore backed by this store.
func (s *Store) MetadataStore() *MetadataStore {
	return &MetadataStore{store: s}
}

// migrateUp applies every pending migration. The migrate instance is not
// closed because that would close the shared connection.
func (s *Store) migrateUp(fsys fs.FS) error {
	src, err := iofs.New(fsys, ".")
	if err != nil {
		return fmt.Errorf("opening migration source: %w", err)
	}
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("creating sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}
	m.Log = migrateLogger{}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// migrateLogger routes golang-migrate output to the debug log.
type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...any) {
	logger.Debug("[migrate] "+format, v...)
}

func (migrateLogger) Verbose() bool {
	return logger.IsVerbose()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
