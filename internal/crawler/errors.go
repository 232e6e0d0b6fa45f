package crawler

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned by stores when a key has no row.
	ErrNotFound = errors.New("not found")
	// ErrConstraintViolation marks a unique violation on a constraint other
	// than the notice id.
	ErrConstraintViolation = errors.New("constraint violation")
	// ErrInvalidParameters marks task parameters that cannot run.
	ErrInvalidParameters = errors.New("invalid task parameters")
	// ErrInvalidTransition is returned when a task cannot move to the requested status.
	ErrInvalidTransition = errors.New("invalid task status transition")
)

func invalidParameter(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameters, msg)
}

// StatusError reports a non-2xx response from an upstream endpoint.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d (%s) from %s", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}
