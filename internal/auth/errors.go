package auth

import "fmt"

// AuthenticationError is returned when the token exchange fails. Body holds the raw
// response from the token endpoint, if any was read.
type AuthenticationError struct {
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *AuthenticationError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode == 0:
		return fmt.Sprintf("authentication against %s failed: %v", e.URL, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("authentication against %s failed with status %d: %v: %s", e.URL, e.StatusCode, e.Err, e.Body)
	default:
		return fmt.Sprintf("authentication against %s failed with status %d: %s", e.URL, e.StatusCode, e.Body)
	}
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// CredentialError reports a missing or malformed credential field.
type CredentialError struct {
	Field string
	Err   error
}

func (e *CredentialError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid credential %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("missing credential %s", e.Field)
}

func (e *CredentialError) Unwrap() error {
	return e.Err
}
