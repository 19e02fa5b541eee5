package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrReferenceNotFound indicates a dangling master-data reference.
	ErrReferenceNotFound = errors.New("referenced record not found")
)
