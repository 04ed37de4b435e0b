// Package store provides SQLite-backed session storage for rdsquote.
//
// Each quote session has:
//   - Snapshot: the controller's InputSet, last valid InputSet and believed
//     catalog version, stored under the fixed key "quote.inputs"
//   - Request log: one row per pricing request with its outcome
//
// # Critical Patterns
//
// Logical ordering:
//   - Request rows are ordered by the controller's seq, NEVER timestamps
//   - Queries use ORDER BY seq ASC, id ASC COLLATE BINARY
//
// Canonical snapshots:
//   - InputSets are stored as canonical JSON (sorted keys, NFC strings)
//   - Rewrites of an identical snapshot are skipped by comparing hashes
//
// Idempotent writes:
//   - UNIQUE(session_id, seq) with ON CONFLICT DO NOTHING on the request log
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait on lock contention
//   - foreign_keys=ON: Enforce referential integrity
//
// OpenEphemeral gives a private in-memory database, matching the
// session-scoped lifetime of browser session storage.
package store
