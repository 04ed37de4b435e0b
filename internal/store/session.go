package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/rdsquote/internal/catalog"
	"github.com/roach88/rdsquote/internal/controller"
	"github.com/roach88/rdsquote/internal/value"
)

// SnapshotKey is the fixed key the InputSet snapshot is stored under.
const SnapshotKey = "quote.inputs"

// NewSession creates a session row and returns its ID.
func (s *Store) NewSession(ctx context.Context, label string) (string, error) {
	id := s.ids.Generate()
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, label) VALUES (?, ?)
	`, id, label); err != nil {
		return "", fmt.Errorf("new session: %w", err)
	}
	return id, nil
}

// Session returns the storage for one session. The session row is created on
// first write if NewSession was not used.
func (s *Store) Session(id string) *SessionStore {
	return &SessionStore{store: s, id: id}
}

// SessionStore is the per-session view of a Store. It implements
// controller.Persister and controller.RequestLog.
type SessionStore struct {
	store *Store
	id    string
}

var (
	_ controller.Persister  = (*SessionStore)(nil)
	_ controller.RequestLog = (*SessionStore)(nil)
)

// ID returns the session ID.
func (ss *SessionStore) ID() string {
	return ss.id
}

func (ss *SessionStore) ensureSession(ctx context.Context) error {
	_, err := ss.store.db.ExecContext(ctx, `
		INSERT INTO sessions (id) VALUES (?)
		ON CONFLICT(id) DO NOTHING
	`, ss.id)
	return err
}

// Save upserts the snapshot. An identical snapshot is not rewritten, so seq
// only moves when something changed.
func (ss *SessionStore) Save(ctx context.Context, st controller.SessionState) error {
	inputs, err := marshalInputs(st.Inputs)
	if err != nil {
		return fmt.Errorf("save snapshot: inputs: %w", err)
	}
	lastValid, err := marshalInputs(st.LastValid)
	if err != nil {
		return fmt.Errorf("save snapshot: last valid: %w", err)
	}
	hash, err := value.Hash(st.Inputs)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	if err := ss.ensureSession(ctx); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	_, err = ss.store.db.ExecContext(ctx, `
		INSERT INTO snapshots (session_id, key, inputs, last_valid, version, hash, seq)
		VALUES (?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(session_id, key) DO UPDATE SET
			inputs     = excluded.inputs,
			last_valid = excluded.last_valid,
			version    = excluded.version,
			hash       = excluded.hash,
			seq        = snapshots.seq + 1
		WHERE snapshots.hash       != excluded.hash
		   OR snapshots.last_valid != excluded.last_valid
		   OR snapshots.version    != excluded.version
	`, ss.id, SnapshotKey, inputs, lastValid, string(st.Version), hash)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Load returns the stored snapshot, or ok=false if the session has none.
func (ss *SessionStore) Load(ctx context.Context) (controller.SessionState, bool, error) {
	var inputs, lastValid, version string
	err := ss.store.db.QueryRowContext(ctx, `
		SELECT inputs, last_valid, version
		FROM snapshots
		WHERE session_id = ? AND key = ?
	`, ss.id, SnapshotKey).Scan(&inputs, &lastValid, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return controller.SessionState{}, false, nil
	}
	if err != nil {
		return controller.SessionState{}, false, fmt.Errorf("load snapshot: %w", err)
	}

	st := controller.SessionState{Version: catalog.Version(version)}
	if st.Inputs, err = unmarshalInputs(inputs); err != nil {
		return controller.SessionState{}, false, fmt.Errorf("load snapshot: inputs: %w", err)
	}
	if st.LastValid, err = unmarshalInputs(lastValid); err != nil {
		return controller.SessionState{}, false, fmt.Errorf("load snapshot: last valid: %w", err)
	}
	return st, true, nil
}

// SnapshotSeq returns how many effective writes the snapshot has seen (0 if none).
func (ss *SessionStore) SnapshotSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := ss.store.db.QueryRowContext(ctx, `
		SELECT seq FROM snapshots WHERE session_id = ? AND key = ?
	`, ss.id, SnapshotKey).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("snapshot seq: %w", err)
	}
	return seq, nil
}

// Record appends a request log entry.
// Uses ON CONFLICT DO NOTHING so a replayed record for the same seq is ignored.
func (ss *SessionStore) Record(ctx context.Context, r controller.RequestRecord) error {
	if err := ss.ensureSession(ctx); err != nil {
		return fmt.Errorf("record request: %w", err)
	}

	_, err := ss.store.db.ExecContext(ctx, `
		INSERT INTO requests
		(id, session_id, seq, version, inputs_hash, outcome, retry, status, field, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		ss.store.ids.Generate(),
		ss.id,
		r.Seq,
		string(r.Version),
		r.InputsHash,
		string(r.Outcome),
		r.Retry,
		r.Status,
		r.Field,
		r.Detail,
	)
	if err != nil {
		return fmt.Errorf("record request: %w", err)
	}
	return nil
}

func marshalInputs(s value.InputSet) (string, error) {
	if s == nil {
		s = value.InputSet{}
	}
	data, err := value.MarshalCanonical(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalInputs(data string) (value.InputSet, error) {
	var s value.InputSet
	if err := s.UnmarshalJSON([]byte(data)); err != nil {
		return nil, err
	}
	return s, nil
}
