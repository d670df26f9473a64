package service

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is returned when a downstream service answers with a non-2xx status.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.StatusCode, e.Body)
}

// IsClientError reports whether err is a StatusError for a 4xx response other
// than 408 and 429, i.e. a request that will fail the same way if repeated.
func IsClientError(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	if se.StatusCode == http.StatusRequestTimeout || se.StatusCode == http.StatusTooManyRequests {
		return false
	}
	return se.StatusCode >= 400 && se.StatusCode < 500
}
