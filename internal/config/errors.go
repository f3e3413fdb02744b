package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and tell the user which
// flag or config value to fix.
//
// Design decision: Package-level sentinel errors let callers use errors.Is()
// while keeping the messages in one place.
var (
	// ErrNoLandingURL is returned when neither a landing URL nor explicit
	// category URLs are configured.
	ErrNoLandingURL = errors.New("no landing URL specified: provide --url or category URLs")

	// ErrInvalidLandingURL is returned when the landing URL is not an
	// absolute http(s) URL.
	ErrInvalidLandingURL = errors.New("invalid landing URL: must be an absolute http(s) URL")

	// ErrInvalidCategoryURL is returned when an explicit category URL is not
	// an absolute http(s) URL.
	ErrInvalidCategoryURL = errors.New("invalid category URL: must be an absolute http(s) URL")

	// ErrInvalidCategoryLimit is returned when the category limit is negative.
	// Use 0 to crawl every discovered category.
	ErrInvalidCategoryLimit = errors.New("invalid category limit: must be non-negative")

	// ErrInvalidConcurrency is returned when the concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidWait is returned when a listing or detail wait is not positive.
	ErrInvalidWait = errors.New("invalid wait: must be positive")

	// ErrInvalidScrollSettle is returned when the scroll settle is negative.
	ErrInvalidScrollSettle = errors.New("invalid scroll settle: must be non-negative")

	// ErrInvalidMaxScrolls is returned when the scroll ceiling is negative.
	// Use 0 to remove the ceiling.
	ErrInvalidMaxScrolls = errors.New("invalid max scrolls: must be non-negative")

	// ErrInvalidDetailDelay is returned when the detail delay is negative.
	ErrInvalidDetailDelay = errors.New("invalid detail delay: must be non-negative")

	// ErrNoOutput is returned when the crawl would write its rows nowhere.
	ErrNoOutput = errors.New("no output: set an output file, a markdown file, or enable the database")
)
