package models

import "errors"

var (
	// ErrNotFound is returned by repositories when no row matches.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")
)
