package cli

import (
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/roach88/rdsquote/internal/api"
	"github.com/roach88/rdsquote/internal/catalog"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeInvalidArg    = "E002" // Bad flag or argument
	ErrCodeUnreachable   = "E003" // Backend could not be reached
	ErrCodeBackend       = "E004" // Backend answered with an error status
	ErrCodeNotFound      = "E005" // Backend answered 404
	ErrCodeFieldRejected = "E006" // A field value was rejected
	ErrCodeConflict      = "E007" // Catalog version conflict survived the retry
	ErrCodeWriteFailed   = "E008" // File write error
	ErrCodePathMissing   = "E009" // No workbook path configured
	ErrCodeStoreFailed   = "E010" // Session store error
	ErrCodeNotPriced     = "E011" // Session ended without a pricing result
)

// classify maps an error to its code and exit status.
func classify(err error) (code string, exit int) {
	var (
		fieldErr  *api.FieldRejectedError
		conflict  *api.VersionConflictError
		statusErr *api.StatusError
		normErr   *catalog.NormalizeError
		netErr    net.Error
	)
	switch {
	case errors.As(err, &normErr):
		return ErrCodeInvalidArg, ExitCommandError
	case errors.As(err, &fieldErr):
		return ErrCodeFieldRejected, ExitFailure
	case errors.As(err, &conflict):
		return ErrCodeConflict, ExitFailure
	case errors.Is(err, api.ErrPathMissing):
		return ErrCodePathMissing, ExitFailure
	case errors.As(err, &statusErr):
		if statusErr.Status == http.StatusNotFound {
			return ErrCodeNotFound, ExitFailure
		}
		return ErrCodeBackend, ExitFailure
	case errors.As(err, &netErr):
		return ErrCodeUnreachable, ExitFailure
	default:
		return ErrCodeGeneric, ExitFailure
	}
}

// fail reports err through the formatter and returns the matching ExitError.
func fail(f *OutputFormatter, err error) error {
	code, exit := classify(err)
	return failWith(f, exit, code, err.Error(), errorDetails(err))
}

// failWith reports a message under an explicit code and exit status.
func failWith(f *OutputFormatter, exit int, code, message string, details any) error {
	_ = f.Error(code, message, details)
	return WrapExitError(exit, fmt.Sprintf("%s: %s", code, message), nil)
}

// errorDetails exposes the structured parts of typed backend errors in JSON output.
func errorDetails(err error) any {
	var (
		fieldErr  *api.FieldRejectedError
		conflict  *api.VersionConflictError
		statusErr *api.StatusError
	)
	switch {
	case errors.As(err, &fieldErr):
		return map[string]string{"field": fieldErr.Field, "message": fieldErr.Message}
	case errors.As(err, &conflict):
		return map[string]string{"server_version": conflict.ServerVersion}
	case errors.As(err, &statusErr):
		return map[string]any{"status": statusErr.Status, "code": statusErr.Code, "detail": statusErr.Detail}
	default:
		return nil
	}
}
