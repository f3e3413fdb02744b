package model

// NotAvailable is the text written in place of a field whose value was not
// found on the page.
const NotAvailable = "N/A"

// Field holds a value scraped from a page, or records that the value was not
// found. The zero value is a missing field.
//
// Design decision: We use an explicit found flag rather than relying on zero
// values because:
//  1. An empty ingredient list and a missing ingredient list must not look alike
//  2. Every sub-extraction can return a Field without an error path
//  3. Writers decide in one place how a missing value is rendered
type Field[T any] struct {
	value T
	found bool
}

// Found returns a Field holding v.
func Found[T any](v T) Field[T] {
	return Field[T]{value: v, found: true}
}

// Missing returns a Field that records a value was not found.
func Missing[T any]() Field[T] {
	return Field[T]{}
}

// Get returns the value and whether it was found.
func (f Field[T]) Get() (T, bool) {
	return f.value, f.found
}

// IsFound reports whether the field holds a value.
func (f Field[T]) IsFound() bool {
	return f.found
}

// OrElse returns the value if found, otherwise fallback.
func (f Field[T]) OrElse(fallback T) T {
	if !f.found {
		return fallback
	}
	return f.value
}

// Or returns f if it holds a value, otherwise other.
func (f Field[T]) Or(other Field[T]) Field[T] {
	if f.found {
		return f
	}
	return other
}
