package server

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/jonathan/bin-crew/internal/geocode"
	"github.com/jonathan/bin-crew/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "ValidationError",
			err:      &types.ValidationError{Field: "employee_id", Message: "is required"},
			expected: http.StatusBadRequest,
		},
		{
			name:     "NotFoundError",
			err:      &types.NotFoundError{Entity: "employee", ID: "E9"},
			expected: http.StatusNotFound,
		},
		{
			name:     "wrapped NotFoundError",
			err:      fmt.Errorf("loading route: %w", &types.NotFoundError{Entity: "job", ID: "J1"}),
			expected: http.StatusNotFound,
		},
		{
			name:     "address not found",
			err:      geocode.ErrNotFound,
			expected: http.StatusNotFound,
		},
		{
			name:     "ConflictError",
			err:      &types.ConflictError{Entity: "job", ID: "J1", Reason: "cannot start a cancelled job"},
			expected: http.StatusConflict,
		},
		{
			name:     "assignment conflict",
			err:      types.ErrAssignmentConflict,
			expected: http.StatusConflict,
		},
		{
			name:     "job left assignable state",
			err:      &types.JobStateError{JobID: "J1", Status: types.JobStatusCompleted},
			expected: http.StatusConflict,
		},
		{
			name:     "CertificationError",
			err:      &types.CertificationError{},
			expected: http.StatusForbidden,
		},
		{
			name:     "UnavailableError",
			err:      &types.UnavailableError{Service: "geocoder"},
			expected: http.StatusServiceUnavailable,
		},
		{
			name:     "Unknown error",
			err:      assert.AnError,
			expected: http.StatusInternalServerError,
		},
		{
			name:     "Nil error",
			err:      nil,
			expected: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HTTPStatus(tt.err))
		})
	}
}
