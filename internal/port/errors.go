package port

import (
	"errors"
	"net/http"
)

var (
	// ErrNotFound is returned by writes that matched no row
	ErrNotFound = errors.New("not found")

	// ErrDuplicateReference is returned when an order reference is taken
	ErrDuplicateReference = errors.New("duplicate order reference")

	// ErrStatusConflict is returned when an order is no longer in the status
	// an update expected
	ErrStatusConflict = errors.New("order status changed concurrently")
)

// ErrBackendUnavailable is returned while an outbound service is known to be
// down and calls are not attempted.
var ErrBackendUnavailable = errors.New("backend unavailable")

// BackendError is a non-2xx answer from an outbound service. Message is the
// service's own text, suitable for showing to the user.
type BackendError struct {
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	return e.Message
}

// Rejected reports whether the service refused the request itself, as
// opposed to failing while handling it.
func (e *BackendError) Rejected() bool {
	return e.Status < http.StatusInternalServerError
}
