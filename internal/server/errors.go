// Package server provides the HTTP REST API for the bin-crew scheduling core.
package server

import (
	"errors"
	"net/http"

	"github.com/jonathan/bin-crew/internal/geocode"
	"github.com/jonathan/bin-crew/internal/types"
)

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		validation    *types.ValidationError
		notFound      *types.NotFoundError
		conflict      *types.ConflictError
		jobState      *types.JobStateError
		certification *types.CertificationError
		unavailable   *types.UnavailableError
	)
	switch {
	case err == nil:
		return http.StatusInternalServerError
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &notFound), errors.Is(err, geocode.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &conflict), errors.As(err, &jobState), errors.Is(err, types.ErrAssignmentConflict):
		return http.StatusConflict
	case errors.As(err, &certification):
		return http.StatusForbidden
	case errors.As(err, &unavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
