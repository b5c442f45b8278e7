package model

import "errors"

var (
	// ErrNotFound covers both a missing record and one owned by someone else,
	// so callers cannot probe for the existence of other users' records.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a conditional write matched no row because
	// the record changed underneath the caller.
	ErrConflict = errors.New("record was modified concurrently")
)
