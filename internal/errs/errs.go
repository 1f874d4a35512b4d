// Package errs defines the error kinds surfaced by taskyard operations.
//
// Callers wrap a kind with context using fmt.Errorf and %w, and inspect it
// with errors.Is. Store and transport failures are never mapped to a kind;
// they propagate as-is and surface as internal errors.
package errs

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrAccessDenied        = errors.New("access denied")
	ErrCreatorOnly         = errors.New("only the task creator may do this")
	ErrSelfDependency      = errors.New("self dependency")
	ErrCrossTeamDependency = errors.New("cross-team dependency")
	ErrDuplicateDependency = errors.New("duplicate dependency")
	ErrCyclicDependency    = errors.New("cyclic dependency")
	ErrValidation          = errors.New("validation error")
	ErrConflict            = errors.New("conflict")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrInvalidCredential   = errors.New("invalid credential")
)

// HTTPStatus maps an error to the status code the API responds with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAccessDenied), errors.Is(err, ErrCreatorOnly):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrInvalidCredential):
		return http.StatusUnauthorized
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrSelfDependency),
		errors.Is(err, ErrCrossTeamDependency),
		errors.Is(err, ErrDuplicateDependency),
		errors.Is(err, ErrCyclicDependency),
		errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// IsClientError reports whether err carries one of the kinds above, meaning
// the caller can correct the request.
func IsClientError(err error) bool {
	s := HTTPStatus(err)
	return s >= 400 && s < 500
}
