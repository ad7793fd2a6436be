package service

import "errors"

// Post-level errors abort the whole operation and surface to the caller.
// Anything that goes wrong with a single delivery stays on that task's row.
var (
	ErrPostNotFound    = errors.New("post not found")
	ErrAccountNotFound = errors.New("social account not found")
	ErrInvalidState    = errors.New("operation not allowed in the post's current state")
	ErrNoTasks         = errors.New("post has no social tasks")
)
