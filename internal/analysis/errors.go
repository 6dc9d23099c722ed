package analysis

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidConfig   = errors.New("invalid analysis service configuration")
	ErrCircuitOpen     = errors.New("analysis service circuit breaker is open")
	ErrInvalidResponse = errors.New("invalid analysis service response")
)

// ServiceError is returned when the service answers with a non-2xx status.
type ServiceError struct {
	StatusCode int
	Body       string
}

func (e *ServiceError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("analysis service returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("analysis service returned status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the service itself is failing, as opposed to
// rejecting the request. Only temporary errors trip the circuit breaker.
func (e *ServiceError) Temporary() bool {
	switch e.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return true
	}
	return e.StatusCode >= 500
}
