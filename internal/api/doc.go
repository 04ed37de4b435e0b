// Package api is the HTTP transport for the RDS quoting backend.
//
// The backend owns pricing, margin arithmetic, workbook I/O and quote
// persistence; this package only moves JSON across the wire and maps error
// responses onto typed errors:
//
//   - 400 with {field, error}       -> *FieldRejectedError
//   - 409 with {version}            -> *VersionConflictError
//   - 400 COST_SHEET_PATH_MISSING   -> ErrPathMissing (wrapped in *StatusError)
//   - anything else >= 400          -> *StatusError
//
// Money and quantities are decoded as shopspring decimals.
package api
