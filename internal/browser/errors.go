package browser

import (
	"errors"
	"fmt"
)

// Page errors. Every failure returned by a Page matches one of these with
// errors.Is, so callers can decide whether to degrade or give up.
var (
	// ErrTimeout is returned when a wait condition is not met in time.
	ErrTimeout = errors.New("timed out waiting for page condition")

	// ErrNotFound is returned when an expected element is absent.
	ErrNotFound = errors.New("element not found")

	// ErrParse is returned when page content is present but malformed.
	ErrParse = errors.New("malformed page content")

	// ErrFetch is matched by every *FetchError.
	ErrFetch = errors.New("page fetch failed")
)

// FetchError reports a navigation or browser session failure.
type FetchError struct {
	// Op is the operation that failed, such as "load" or "open tab".
	Op string

	// URL is the page involved, if any.
	URL string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrFetch.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetch
}
