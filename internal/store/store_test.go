package store

import (
	"os"
	"path/filepath"
	"testing"
)

// createTestStore opens a file-backed store in a temp dir with fixed IDs.
func createTestStore(t *testing.T, ids ...string) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	var opts []Option
	if len(ids) > 0 {
		opts = append(opts, WithIDGenerator(NewFixedGenerator(ids...)))
	}
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	for _, table := range []string{"sessions", "snapshots", "requests"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestOpenEphemeral_Isolated(t *testing.T) {
	a, err := OpenEphemeral(WithIDGenerator(NewFixedGenerator("sess-a")))
	if err != nil {
		t.Fatalf("OpenEphemeral() failed: %v", err)
	}
	defer a.Close()

	b, err := OpenEphemeral()
	if err != nil {
		t.Fatalf("OpenEphemeral() failed: %v", err)
	}
	defer b.Close()

	if _, err := a.NewSession(t.Context(), "first"); err != nil {
		t.Fatalf("NewSession() failed: %v", err)
	}

	sessions, err := b.ListSessions(t.Context())
	if err != nil {
		t.Fatalf("ListSessions() failed: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("ephemeral stores share state: %v", sessions)
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	for _, p := range filePragmas {
		if err := s.verifyPragma(p.name, p.want); err != nil {
			t.Error(err)
		}
	}
	if err := s.verifyPragma("user_version", "1"); err != nil {
		t.Error(err)
	}
}

func TestPragmas_Ephemeral(t *testing.T) {
	s, err := OpenEphemeral()
	if err != nil {
		t.Fatalf("OpenEphemeral() failed: %v", err)
	}
	defer s.Close()

	for _, p := range memoryPragmas {
		if err := s.verifyPragma(p.name, p.want); err != nil {
			t.Error(err)
		}
	}
	if err := s.verifyPragma("journal_mode", "memory"); err != nil {
		t.Error(err)
	}
}

func TestMigration_IndexPresent(t *testing.T) {
	s := createTestStore(t)

	var name string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name='idx_requests_session_outcome'",
	).Scan(&name)
	if err != nil {
		t.Errorf("outcome index missing: %v", err)
	}
}

func TestFixedGenerator_Exhausted(t *testing.T) {
	g := NewFixedGenerator("only")
	if got := g.Generate(); got != "only" {
		t.Fatalf("Generate() = %q", got)
	}
	defer func() {
		if recover() == nil {
			t.Error("expected panic after ids exhausted")
		}
	}()
	g.Generate()
}

func TestValidSessionID(t *testing.T) {
	if !ValidSessionID(UUIDv7Generator{}.Generate()) {
		t.Error("generated UUIDv7 should be valid")
	}
	if ValidSessionID("not-a-uuid") {
		t.Error("garbage accepted as session id")
	}
}
