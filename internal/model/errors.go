package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTarget is returned when a website string is not a usable
// http(s) URL. Callers treat the website as absent.
var ErrInvalidTarget = errors.New("invalid target: website is not a well-formed http(s) URL")

// FetchError describes a single page that could not be retrieved.
// The crawler records it and moves on; it is never fatal to a crawl.
type FetchError struct {
	// URL is the page that failed.
	URL string

	// StatusCode is the HTTP status when a response was received, otherwise 0.
	StatusCode int

	// Err is the underlying transport or timeout error, if any.
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Window names the quota window that rejected an admission.
type Window string

const (
	// WindowMinute is the per-client sliding minute window.
	WindowMinute Window = "minute"

	// WindowDay is the per-session daily cap.
	WindowDay Window = "day"
)

// RateExceededError is returned when the rate governor rejects a lookup.
// It is the only error Resolve surfaces to its caller, so that
// "try again later" can be told apart from "nothing found".
type RateExceededError struct {
	// Window is the quota that was exceeded.
	Window Window

	// Limit is the ceiling of that window.
	Limit int

	// RetryAfter is a hint for when the window resets. Zero means unknown.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateExceededError) Error() string {
	switch e.Window {
	case WindowDay:
		return fmt.Sprintf("rate exceeded: daily limit of %d lookups reached", e.Limit)
	default:
		return fmt.Sprintf("rate exceeded: more than %d lookups per %s", e.Limit, e.Window)
	}
}

// IsRateExceeded reports whether err is, or wraps, a *RateExceededError.
func IsRateExceeded(err error) (*RateExceededError, bool) {
	var rateErr *RateExceededError
	if errors.As(err, &rateErr) {
		return rateErr, true
	}
	return nil, false
}
