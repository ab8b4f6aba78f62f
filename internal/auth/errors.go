package auth

import "fmt"

// AuthError represents a failure to obtain or renew an access token
type AuthError struct {
	Op         string // authenticate, renew or decode
	StatusCode int    // set when the identity provider answered with an HTTP error
	Err        error
}

func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s failed (status %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}
