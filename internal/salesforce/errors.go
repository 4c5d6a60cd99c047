package salesforce

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound matches a FetchError for a 404 response.
var ErrNotFound = errors.New("not found")

// ValidationError rejects malformed input or malformed records before they are used.
type ValidationError struct {
	ID     string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("validation error [%s]: %s", e.ID, e.Reason)
	}
	return "validation error: " + e.Reason
}

type QueryError struct {
	SOQL       string
	StatusCode int
	Body       string
	Err        error
}

func (e *QueryError) Error() string {
	return describe("query failed", e.StatusCode, e.Body, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

type FetchError struct {
	ID         string
	StatusCode int
	Body       string
	Err        error
}

func (e *FetchError) Error() string {
	return describe(fmt.Sprintf("failed to retrieve file content for %s", e.ID), e.StatusCode, e.Body, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

type CreateError struct {
	ObjectType string
	StatusCode int
	Body       string
	Err        error
}

func (e *CreateError) Error() string {
	return describe(fmt.Sprintf("failed to create %s", e.ObjectType), e.StatusCode, e.Body, e.Err)
}

func (e *CreateError) Unwrap() error {
	return e.Err
}

func describe(prefix string, status int, body string, err error) string {
	switch {
	case status == 0 && err != nil:
		return fmt.Sprintf("%s: %v", prefix, err)
	case err != nil:
		return fmt.Sprintf("%s with status %d: %v: %s", prefix, status, err, body)
	default:
		return fmt.Sprintf("%s with status %d: %s", prefix, status, body)
	}
}

// StatusAndBody extracts the upstream status and raw body from any client error.
func StatusAndBody(err error) (int, string) {
	var (
		qe *QueryError
		fe *FetchError
		ce *CreateError
	)
	switch {
	case errors.As(err, &qe):
		return qe.StatusCode, qe.Body
	case errors.As(err, &fe):
		return fe.StatusCode, fe.Body
	case errors.As(err, &ce):
		return ce.StatusCode, ce.Body
	}
	return 0, ""
}
