package nep

import "fmt"

// HTTPError represents a failed call to the account or usage endpoint:
// a transport error, a timeout, or a non-2xx response
type HTTPError struct {
	Endpoint   string
	StatusCode int
	Body       string
	Timeout    bool
	Err        error
}

func (e *HTTPError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("%s: request timed out: %v", e.Endpoint, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: API returned status %d: %s", e.Endpoint, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("%s: %v", e.Endpoint, e.Err)
	}
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}
