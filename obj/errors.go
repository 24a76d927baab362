package obj

import "fmt"

// Error codes surfaced to clients or used to classify internal failures for
// structured logging.
const (
	ErrCodeGeneric         = "error"
	ErrCodeValidation      = "validation_error"
	ErrCodeNotFound        = "not_found"
	ErrCodeConflict        = "conflict"
	ErrCodeServerError     = "server_error"
	ErrCodeSessionFull     = "session_full"
	ErrCodeGameInProgress  = "game_in_progress"
	ErrCodeUnknownSession  = "unknown_session"
	ErrCodeScriptError     = "script_error"
	ErrCodeUpstreamFailure = "upstream_failure"
)

func ErrValidation(message string) *AppError {
	return NewAppError(ErrCodeValidation, message)
}

func ErrValidationf(format string, args ...any) *AppError {
	return NewAppError(ErrCodeValidation, fmt.Sprintf(format, args...))
}

func ErrNotFound(message string) *AppError {
	return NewAppError(ErrCodeNotFound, message)
}

func ErrNotFoundf(format string, args ...any) *AppError {
	return NewAppError(ErrCodeNotFound, fmt.Sprintf(format, args...))
}

func ErrConflict(message string) *AppError {
	return NewAppError(ErrCodeConflict, message)
}

func ErrServerErrorf(format string, args ...any) *AppError {
	return NewAppError(ErrCodeServerError, fmt.Sprintf(format, args...))
}

// AppError is a custom error type that carries a machine-readable code
// alongside a human-readable message, optionally wrapping an underlying
// error for diagnostics.
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func WrapError(code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}
