//nolint:revive // types is a standard Go package name pattern
package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrAssignmentConflict is returned by stores when a conditional assignment write
// finds a different assignee already persisted.
var ErrAssignmentConflict = errors.New("job is assigned to another employee")

// JobStateError is returned by stores when a conditional assignment write finds
// the job in a status that no longer accepts assignment.
type JobStateError struct {
	JobID      string
	Status     JobStatus
	AssigneeID string
}

func (e *JobStateError) Error() string {
	return fmt.Sprintf("job %s is %s", e.JobID, e.Status)
}

// ErrNotFound matches any *NotFoundError under errors.Is.
var ErrNotFound = errors.New("not found")

// ValidationError indicates missing or malformed input, rejected before any I/O.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// NotFoundError indicates a referenced entity does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ConflictError indicates the entity's current state refuses the operation.
type ConflictError struct {
	Entity string
	ID     string
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Entity, e.ID, e.Reason)
}

// UnavailableError indicates an external dependency failed.
type UnavailableError struct {
	Service string
	Err     error
}

func (e *UnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
	}
	return fmt.Sprintf("%s unavailable", e.Service)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// CertificationError is a gate refusal. It carries the full status so callers can
// direct the employee to the missing or expired modules.
type CertificationError struct {
	Status *CertificationStatus
}

func (e *CertificationError) Error() string {
	if e.Status == nil {
		return "certification required"
	}
	switch e.Status.Status {
	case CertificationExpired:
		return fmt.Sprintf("certification expired: retrain on %s", strings.Join(e.Status.ExpiredModules, ", "))
	case CertificationNotStarted, CertificationInProgress:
		return fmt.Sprintf("certification incomplete: missing %s", strings.Join(e.Status.MissingModules, ", "))
	}
	return "certification required"
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// FromValidator converts the first validator field error into a *ValidationError.
// Other errors are returned unchanged.
func FromValidator(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	msg := fmt.Sprintf("failed on '%s' validation", fe.Tag())
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "min":
		msg = fmt.Sprintf("must contain at least %s item(s)", fe.Param())
	case "datetime":
		msg = fmt.Sprintf("must be a date in %s format", fe.Param())
	case "oneof":
		msg = fmt.Sprintf("must be one of: %s", fe.Param())
	case "url":
		msg = "must be a valid URL"
	case "gte", "lte":
		msg = fmt.Sprintf("must satisfy %s=%s", fe.Tag(), fe.Param())
	}
	return &ValidationError{Field: field, Message: msg}
}
