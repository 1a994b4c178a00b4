package httpclient

import (
	"errors"
	"fmt"
)

// StatusError represents a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream returned %d (URL: %s)", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("upstream returned %d: %s (URL: %s)", e.StatusCode, e.Body, e.URL)
}

// IsNotFound checks if the error is a 404 response.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == 404
}

// IsRateLimited checks if the error is a 429 response.
func IsRateLimited(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == 429
}
