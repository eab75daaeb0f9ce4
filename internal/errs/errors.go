package errs

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("not authenticated")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrStorage      = errors.New("storage failure")
)

var ErrStatusMap = map[error]int{
	ErrValidation:   http.StatusBadRequest,
	ErrUnauthorized: http.StatusUnauthorized,
	ErrForbidden:    http.StatusForbidden,
	ErrNotFound:     http.StatusNotFound,
	ErrConflict:     http.StatusConflict,
	ErrStorage:      http.StatusInternalServerError,
}

// Status returns the HTTP status for err. Errors outside the taxonomy are
// treated as server errors.
func Status(err error) int {
	for known, status := range ErrStatusMap {
		if errors.Is(err, known) {
			return status
		}
	}
	return http.StatusInternalServerError
}

// Message returns the text that is safe to show a client. Server errors
// never expose their cause.
func Message(err error) string {
	if Status(err) >= http.StatusInternalServerError {
		return "Internal server error"
	}
	return err.Error()
}

// Wrap attaches msg to sentinel so errors.Is still matches it.
func Wrap(sentinel error, msg string) error {
	return fmt.Errorf("%w: %s", sentinel, msg)
}
