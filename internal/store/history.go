package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/rdsquote/internal/catalog"
	"github.com/roach88/rdsquote/internal/controller"
)

// SessionInfo summarises one stored session.
type SessionInfo struct {
	ID        string `json:"id"`
	Label     string `json:"label,omitempty"`
	CreatedAt string `json:"created_at"`
	Requests  int    `json:"requests"`
}

// RequestEntry is a request log row.
type RequestEntry struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	controller.RequestRecord
}

// ListSessions returns sessions in creation order (UUIDv7 IDs sort by time).
//
// Returns an empty slice (not nil) if there are none.
func (s *Store) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.label, s.created_at, COUNT(r.id)
		FROM sessions s
		LEFT JOIN requests r ON r.session_id = s.id
		GROUP BY s.id
		ORDER BY s.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	out := []SessionInfo{}
	for rows.Next() {
		var si SessionInfo
		if err := rows.Scan(&si.ID, &si.Label, &si.CreatedAt, &si.Requests); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, si)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

// ListRequests returns a session's request log ordered by seq ASC, id ASC.
// A non-empty outcome filters to that outcome.
//
// Returns an empty slice (not nil) if no records exist.
func (s *Store) ListRequests(ctx context.Context, sessionID string, outcome controller.Outcome) ([]RequestEntry, error) {
	query := `
		SELECT id, session_id, seq, version, inputs_hash, outcome, retry, status, field, detail
		FROM requests
		WHERE session_id = ?`
	args := []any{sessionID}
	if outcome != "" {
		query += ` AND outcome = ?`
		args = append(args, string(outcome))
	}
	query += `
		ORDER BY seq ASC, id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query requests: %w", err)
	}
	defer rows.Close()

	out := []RequestEntry{}
	for rows.Next() {
		e, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requests: %w", err)
	}
	return out, nil
}

// LastSeq returns the highest request seq logged for a session (0 if none).
// Pass it to controller.NewClockAt when resuming the session.
func (s *Store) LastSeq(ctx context.Context, sessionID string) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `
		SELECT MAX(seq) FROM requests WHERE session_id = ?
	`, sessionID).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq.Int64, nil
}

func scanRequest(rows *sql.Rows) (RequestEntry, error) {
	var (
		e       RequestEntry
		version string
		outcome string
	)
	err := rows.Scan(
		&e.ID,
		&e.SessionID,
		&e.Seq,
		&version,
		&e.InputsHash,
		&outcome,
		&e.Retry,
		&e.Status,
		&e.Field,
		&e.Detail,
	)
	if err != nil {
		return RequestEntry{}, fmt.Errorf("scan request: %w", err)
	}
	e.Version = catalog.Version(version)
	e.Outcome = controller.Outcome(outcome)
	return e, nil
}
