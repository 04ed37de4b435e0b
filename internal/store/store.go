package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on requests(session_id, outcome) for history filters
const currentSchemaVersion = 1

// Store persists quote sessions: the controller's InputSet snapshot and the
// log of pricing requests.
type Store struct {
	db  *sql.DB
	ids IDGenerator
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator replaces the UUIDv7 generator (tests use FixedGenerator).
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Store) {
		s.ids = g
	}
}

// Open opens (creating if needed) the session database at path, applies the
// pragmas below and brings the schema up to date. Opening the same file twice
// is safe.
//
//   - journal_mode=WAL: history reads while a session writes
//   - synchronous=NORMAL
//   - busy_timeout=5000: a second rdsquote process waits instead of failing
//   - foreign_keys=ON: requests and snapshots must name a session
func Open(path string, opts ...Option) (*Store, error) {
	return open(path, filePragmas, opts)
}

// OpenEphemeral opens a private in-memory database that lives until Close.
// This is the session-scoped default when no --session-db is given.
func OpenEphemeral(opts ...Option) (*Store, error) {
	// A unique name keeps concurrent ephemeral stores apart; the single
	// pooled connection keeps the memory database alive.
	name := fmt.Sprintf("file:rdsquote-%s?mode=memory&cache=shared", uuid.NewString())
	return open(name, memoryPragmas, opts)
}

func open(dsn string, pragmas []pragma, opts []Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open session database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to session database: %w", err)
	}

	// One connection: SQLite has a single writer, and an in-memory database
	// disappears with its last connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, p := range pragmas {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma %s: %w", p.name, err)
		}
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, ids: UUIDv7Generator{}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// pragma is a setting applied on open; want is what reading it back returns.
type pragma struct {
	name  string
	value string
	want  string
}

var memoryPragmas = []pragma{
	{name: "synchronous", value: "NORMAL", want: "1"},
	{name: "busy_timeout", value: "5000", want: "5000"},
	{name: "foreign_keys", value: "ON", want: "1"},
}

var filePragmas = append([]pragma{{name: "journal_mode", value: "WAL", want: "wal"}}, memoryPragmas...)

// applySchema creates missing tables and runs migrations past user_version.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply session schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return nil
}

// migrateToV1 adds the outcome index used by `history --outcome`.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_requests_session_outcome
		ON requests(session_id, outcome)
	`)
	if err != nil {
		return fmt.Errorf("migrate session schema to v1: %w", err)
	}
	return nil
}

// verifyPragma reads a pragma back and compares it with expected.
func (s *Store) verifyPragma(name, expected string) error {
	var got string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&got); err != nil {
		return fmt.Errorf("read pragma %s: %w", name, err)
	}
	if got != expected {
		return fmt.Errorf("pragma %s = %q, want %q", name, got, expected)
	}
	return nil
}
