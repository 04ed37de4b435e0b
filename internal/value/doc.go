// Package value provides the scalar value model for quote inputs.
//
// A quote session is a map of field IDs to scalar values. Only two scalar
// kinds exist:
//   - Number: an exact decimal (quantities, counts); never a binary float
//   - Text: an enumerated choice or free text
//
// This package imports nothing internal. catalog, controller, api and store
// all build on it.
//
// Key design constraints:
//   - Numbers are decimals end to end so that 20 and 20.0 compare equal and
//     round-trip through storage without float drift
//   - InputSet iteration must go through SortedKeys for deterministic output
//   - Canonical JSON (MarshalCanonical) is the only form used for hashing
package value
