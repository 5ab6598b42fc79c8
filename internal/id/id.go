package id

import "github.com/google/uuid"

// New returns a random request id.
func New() string {
	return uuid.NewString()
}

// Valid reports whether s parses as a UUID, so callers can accept
// client-supplied request ids.
func Valid(s string) bool {
	return uuid.Validate(s) == nil
}
