package reddit

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

// Client errors.
var (
	ErrNoToken          = errors.New("no access token received")
	ErrUnexpectedShape  = errors.New("unexpected response shape")
	ErrInvalidPermalink = errors.New("not a submission url")
)

// RateLimitError is returned when the API asks the caller to slow down.
// SleepTime is the server's hint of how long to wait.
type RateLimitError struct {
	Message   string
	SleepTime time.Duration
}

func (e *RateLimitError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("rate limited: %s (retry in %s)", e.Message, e.SleepTime)
	}

	return fmt.Sprintf("rate limited (retry in %s)", e.SleepTime)
}

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	Method     string
	URL        string
	Body       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status code %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// APIError is an error reported inside a successful response body, such as
// the "json.errors" array of POST endpoints.
type APIError struct {
	Code    string
	Message string
	Field   string
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("api error %s: %s (field %s)", e.Code, e.Message, e.Field)
	}

	return fmt.Sprintf("api error %s: %s", e.Code, e.Message)
}

// IsRateLimit reports whether err carries a rate-limit signal.
func IsRateLimit(err error) bool {
	var rle *RateLimitError

	return errors.As(err, &rle)
}

// IsTransient reports whether err is an intermittent request failure worth
// retrying: network errors, timeouts and 5xx/408 responses.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= http.StatusInternalServerError || se.StatusCode == http.StatusRequestTimeout
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}

	var ue *url.Error
	return errors.As(err, &ue)
}
