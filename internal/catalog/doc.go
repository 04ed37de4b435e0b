// Package catalog models the server-declared schema of configurable fields.
//
// A Catalog is identified by an opaque Version token. Every pricing request
// is tagged with the version the client believes is current; a mismatch is
// recoverable (refetch and retry), not an error.
//
// The catalog is also the authority for local normalization (numeric fields
// parse to numbers, text passes through) and for rehydrating a persisted
// session: stored values survive only if the field still exists and the
// value is still inside the field's option domain.
package catalog
