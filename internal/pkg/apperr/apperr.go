package apperr

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrAlreadyExists signals a uniqueness conflict on create.
	ErrAlreadyExists = errors.New("already exists")
	// ErrRemoteUnavailable signals that the remote backend has no
	// credentials configured or cannot be reached.
	ErrRemoteUnavailable = errors.New("remote backend unavailable")
	// ErrGenerationUnavailable signals that no generation credential
	// is configured.
	ErrGenerationUnavailable = errors.New("generation unavailable")
)
