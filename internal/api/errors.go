package api

import (
	"context"
	"errors"
	"fmt"
)

// ErrPathMissing is returned when the backend has no workbook path configured
// (400 {"error": "COST_SHEET_PATH_MISSING"}).
var ErrPathMissing = errors.New("cost sheet path missing")

// CodePathMissing is the error code the backend uses for ErrPathMissing.
const CodePathMissing = "COST_SHEET_PATH_MISSING"

// FieldRejectedError is a server-side validation failure for one field.
type FieldRejectedError struct {
	Field   string
	Message string
}

func (e *FieldRejectedError) Error() string {
	return fmt.Sprintf("field %s rejected: %s", e.Field, e.Message)
}

// VersionConflictError means the request carried a stale catalog version.
// ServerVersion is the version the backend considers current.
type VersionConflictError struct {
	ServerVersion string
	Message       string
}

func (e *VersionConflictError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("catalog version conflict (server=%s): %s", e.ServerVersion, e.Message)
	}
	return fmt.Sprintf("catalog version conflict (server=%s)", e.ServerVersion)
}

// StatusError is any other non-success response.
type StatusError struct {
	Method string
	Path   string
	Status int
	Code   string // "error" field, when present
	Detail string // "detail" field, when present
	Err    error  // sentinel cause (e.g. ErrPathMissing)
}

func (e *StatusError) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = e.Code
	}
	if msg == "" {
		return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.Status, msg)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// IsFieldRejected reports whether err is a FieldRejectedError.
func IsFieldRejected(err error) bool {
	var fe *FieldRejectedError
	return errors.As(err, &fe)
}

// IsVersionConflict reports whether err is a VersionConflictError.
func IsVersionConflict(err error) bool {
	var ve *VersionConflictError
	return errors.As(err, &ve)
}

// IsCanceled reports whether err stems from a cancelled request context.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
