//nolint:revive // types is a standard Go package name pattern
package types

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// newValidator returns a validator that reports JSON field names.
func newValidator() *validator.Validate {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return validate
}

// AssignRequest is a batch assignment of jobs to one employee.
type AssignRequest struct {
	JobIDs        []string `json:"job_ids" validate:"required,min=1,dive,required"`
	EmployeeID    string   `json:"employee_id" validate:"required"`
	ScheduledDate string   `json:"scheduled_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// Validate validates the AssignRequest using the validator.
func (r *AssignRequest) Validate() error {
	return newValidator().Struct(r)
}

// AssignResult reports the outcome of an assignment batch. Each job is an
// independent unit: failures never roll back successes.
type AssignResult struct {
	EmployeeID    string               `json:"employee_id"`
	Date          string               `json:"date,omitempty"`
	Assigned      []string             `json:"assigned"`
	Errors        []string             `json:"errors"`
	AssignedCount int                  `json:"assigned_count"`
	FailedCount   int                  `json:"failed_count"`
	Certification *CertificationStatus `json:"certification,omitempty"`
}

// NewAssignResult returns a result with empty, non-nil slices.
func NewAssignResult(employeeID, date string) *AssignResult {
	return &AssignResult{
		EmployeeID: employeeID,
		Date:       date,
		Assigned:   []string{},
		Errors:     []string{},
	}
}

// TrainingCompletionRequest records a module attempt.
type TrainingCompletionRequest struct {
	Score int `json:"score" validate:"gte=0,lte=100"`
}

// Validate validates the TrainingCompletionRequest using the validator.
func (r *TrainingCompletionRequest) Validate() error {
	return newValidator().Struct(r)
}

// PhotoRequest records a documentation photo for a job.
type PhotoRequest struct {
	Kind string `json:"kind" validate:"required,oneof=inside outside"`
	URL  string `json:"url" validate:"required,url"`
}

// Validate validates the PhotoRequest using the validator.
func (r *PhotoRequest) Validate() error {
	return newValidator().Struct(r)
}

// GeocodeRequest asks for coordinates of a free-text address.
type GeocodeRequest struct {
	Address string `json:"address" validate:"required"`
}

// Validate validates the GeocodeRequest using the validator.
func (r *GeocodeRequest) Validate() error {
	return newValidator().Struct(r)
}

// OptimizeRouteRequest carries stops to be ordered.
type OptimizeRouteRequest struct {
	Stops []Stop `json:"stops" validate:"required,min=1"`
}

// Validate validates the OptimizeRouteRequest using the validator.
func (r *OptimizeRouteRequest) Validate() error {
	return newValidator().Struct(r)
}
