package apperr

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrInvalid marks a caller-supplied argument that cannot be honoured.
	ErrInvalid = errors.New("invalid argument")

	// ErrUpstream marks a remote API that answered with a non-2xx status or an
	// error payload.
	ErrUpstream      = errors.New("upstream error")
	ErrEmptyResponse = errors.New("empty response")
)
