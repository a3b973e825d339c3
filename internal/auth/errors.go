package auth

import "errors"

// Expected outcomes returned to the transport boundary. Anything outside
// this set is an infrastructure failure and maps to a 500.
var (
	ErrUnauthenticated = errors.New("auth: unauthenticated")
	ErrForbidden       = errors.New("auth: forbidden")
	ErrNotFound        = errors.New("auth: not found")
	ErrBadRequest      = errors.New("auth: bad request")
	ErrConflict        = errors.New("auth: already exists")
)
