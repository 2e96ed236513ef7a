package local

import "errors"

var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidKey is returned for collection or id values that would escape the store
	ErrInvalidKey = errors.New("invalid key")
)
