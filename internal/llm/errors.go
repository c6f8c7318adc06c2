package llm

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMissingAPIKey is returned by New when no key is configured.
	ErrMissingAPIKey = errors.New("llm: missing api key")

	// ErrInvalidInput covers requests the service rejected as malformed
	// (non-429 4xx responses) and requests that could not be built.
	ErrInvalidInput = errors.New("llm: invalid input")

	// ErrRateLimited is returned for HTTP 429.
	ErrRateLimited = errors.New("llm: rate limited")

	// ErrUpstream is returned for 5xx and 408 responses.
	ErrUpstream = errors.New("llm: upstream failure")

	// ErrResponseInvalid is returned when the response body or the model's
	// content cannot be decoded.
	ErrResponseInvalid = errors.New("llm: invalid response")
)

// UpstreamError carries the status and a short excerpt of the body of a
// failed upstream call. It matches ErrUpstream with errors.Is.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("llm upstream %d: %s", e.Status, e.Message)
}

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// Timeout reports whether the upstream answered 408.
func (e *UpstreamError) Timeout() bool { return e.Status == http.StatusRequestTimeout }

// Temporary reports whether the failure is a 5xx.
func (e *UpstreamError) Temporary() bool { return e.Status/100 == 5 }
