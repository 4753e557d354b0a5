package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnavailable marks transient infrastructure failures (store or queue
	// unreachable). Callers must never record it as a job-domain failure.
	ErrUnavailable = errors.New("unavailable")
	// ErrConflict marks requests valid in form but impossible in the
	// resource's current state (e.g. downloading a result mid-run).
	ErrConflict = errors.New("conflict")
)
