package utils

import "time"

// Pointer returns a pointer to the given value
func Pointer[T any](v T) *T {
	return &v
}

// Today returns the server-local date as "YYYY-MM-DD". The daily send counter
// resets when this string changes, so the reset boundary is server-local
// midnight, not lead-local.
func Today() string {
	return time.Now().Format("2006-01-02")
}
