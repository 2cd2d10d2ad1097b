// Package store declares the persistence contracts the scheduling core depends on.
// Implementations live in internal/db (PostgreSQL) and internal/store/memory.
//
// Getters return (nil, nil) when the record does not exist.
package store

import (
	"context"
	"errors"

	"github.com/jonathan/bin-crew/internal/types"
)

// ErrStatusConflict is returned by UpdateJob when ExpectStatus does not match the
// persisted status.
var ErrStatusConflict = errors.New("job status changed concurrently")

// JobFilter narrows ListJobs. Empty fields are ignored.
type JobFilter struct {
	Date       string
	EmployeeID string
	Unassigned bool
	Statuses   []types.JobStatus
}

// Jobs is the job record store.
type Jobs interface {
	GetJob(ctx context.Context, id string) (*types.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]types.Job, error)
	// AssignJob sets the assignee and moves the job to pending only if the persisted
	// assignee is empty or already employeeID and the persisted status is unassigned
	// or pending. A different assignee yields types.ErrAssignmentConflict; any other
	// status yields *types.JobStateError. Either way the job is left unchanged.
	AssignJob(ctx context.Context, jobID, employeeID, employeeName string) (*types.Job, error)
	UpdateJob(ctx context.Context, jobID string, update types.JobUpdate) (*types.Job, error)
}

// Employees is the employee record store.
type Employees interface {
	GetEmployee(ctx context.Context, id string) (*types.Employee, error)
	ListEmployees(ctx context.Context, activeOnly bool) ([]types.Employee, error)
}

// Training is the training record store.
type Training interface {
	ListTrainingRecords(ctx context.Context, employeeID string) ([]types.TrainingRecord, error)
	// SaveTrainingRecord inserts or replaces the record for (EmployeeID, ModuleID).
	SaveTrainingRecord(ctx context.Context, rec *types.TrainingRecord) error
}

// Audit is the append-only audit log.
type Audit interface {
	AppendAuditEvent(ctx context.Context, event *types.AuditEvent) error
}
