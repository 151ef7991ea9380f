package common

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound       = errors.New("requested resource not found")
	ErrUnauthorized   = errors.New("unauthorized access")
	ErrForbidden      = errors.New("forbidden access")
	ErrBadRequest     = errors.New("bad request")
	ErrConflict       = errors.New("resource conflict") // e.g., duplicate registration
	ErrInternalServer = errors.New("internal server error")
	ErrValidation     = errors.New("validation failed")
)

// CodedError attaches a machine readable code to a sentinel error. The
// message is safe to show to clients.
type CodedError struct {
	Code    string
	Message string
	Err     error
}

func (e *CodedError) Error() string { return e.Message }
func (e *CodedError) Unwrap() error { return e.Err }

// NewCodedError builds a client-facing error that still matches its sentinel with errors.Is.
func NewCodedError(sentinel error, code, message string) error {
	return &CodedError{Code: code, Message: message, Err: sentinel}
}

// HTTPStatusFromError maps domain errors to HTTP status codes.
func HTTPStatusFromError(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if errors.Is(err, ErrNotFound) || IsInvalidID(err) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrUnauthorized) {
		return http.StatusUnauthorized
	}
	if errors.Is(err, ErrForbidden) {
		return http.StatusForbidden
	}
	if errors.Is(err, ErrBadRequest) || errors.Is(err, ErrValidation) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrConflict) {
		return http.StatusConflict
	}
	if IsUniqueViolation(err) {
		return http.StatusConflict
	}

	return http.StatusInternalServerError
}

// ErrorCode returns the stable code reported to clients alongside the status.
func ErrorCode(err error) string {
	var coded *CodedError
	if errors.As(err, &coded) && coded.Code != "" {
		return coded.Code
	}
	switch HTTPStatusFromError(err) {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusBadRequest:
		if errors.Is(err, ErrValidation) {
			return "validation_failed"
		}
		return "bad_request"
	case http.StatusConflict:
		return "conflict"
	}
	return "internal_error"
}

// IsUniqueViolation reports whether err carries a postgres unique_violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsInvalidID reports whether postgres rejected a malformed uuid. Ids come
// from request paths, so a malformed one cannot name an existing row.
func IsInvalidID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

// ClientMessage returns the message of the first CodedError in err's
// chain, or err's own text when it carries none. Postgres errors that map
// to a client status get the sentinel's text instead of the driver's.
func ClientMessage(err error) string {
	if IsInvalidID(err) {
		return ErrNotFound.Error()
	}
	if IsUniqueViolation(err) {
		return ErrConflict.Error()
	}
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Message
	}
	return err.Error()
}

// Errorf creates a new error with formatting, useful for wrapping.
func Errorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
