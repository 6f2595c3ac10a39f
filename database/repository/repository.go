package repository

import "errors"

var (
	// ErrNotFound is returned when no document has the requested id.
	ErrNotFound = errors.New("not found")
	// ErrStateConflict is returned when a conditional transition finds the
	// record in a different state than expected.
	ErrStateConflict = errors.New("state conflict")
	// ErrDuplicate is returned when a record with the same id already exists.
	ErrDuplicate = errors.New("duplicate record")
)
