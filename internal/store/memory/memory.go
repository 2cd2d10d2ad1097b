// Package memory is an in-process implementation of the store interfaces, used by
// tests and by the server when no database is configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/bin-crew/internal/store"
	"github.com/jonathan/bin-crew/internal/types"
)

var (
	_ store.Jobs      = (*Store)(nil)
	_ store.Employees = (*Store)(nil)
	_ store.Training  = (*Store)(nil)
	_ store.Audit     = (*Store)(nil)
)

// Store keeps every record in maps guarded by one RWMutex. Values are copied on the
// way in and out so callers never share memory with the store.
type Store struct {
	mu sync.RWMutex

	jobs      map[string]types.Job
	employees map[string]types.Employee
	training  map[string]map[string]types.TrainingRecord // employeeID -> moduleID -> record
	audit     []types.AuditEvent

	// Now is the server-side clock. Defaults to time.Now.
	Now func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		jobs:      map[string]types.Job{},
		employees: map[string]types.Employee{},
		training:  map[string]map[string]types.TrainingRecord{},
		Now:       time.Now,
	}
}

// PutJob inserts or replaces a job. An empty ID is assigned a UUID.
func (s *Store) PutJob(job types.Job) types.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = types.JobStatusUnassigned
	}
	now := s.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	s.jobs[job.ID] = copyJob(job)
	return copyJob(job)
}

// PutEmployee inserts or replaces an employee. An empty ID is assigned a UUID.
func (s *Store) PutEmployee(emp types.Employee) types.Employee {
	s.mu.Lock()
	defer s.mu.Unlock()

	if emp.ID == "" {
		emp.ID = uuid.NewString()
	}
	now := s.Now()
	if emp.CreatedAt.IsZero() {
		emp.CreatedAt = now
	}
	emp.UpdatedAt = now
	s.employees[emp.ID] = copyEmployee(emp)
	return copyEmployee(emp)
}

// AuditEvents returns a snapshot of the audit log.
func (s *Store) AuditEvents() []types.AuditEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.AuditEvent(nil), s.audit...)
}

// ---- jobs ----

func (s *Store) GetJob(_ context.Context, id string) (*types.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	out := copyJob(job)
	return &out, nil
}

func (s *Store) ListJobs(_ context.Context, filter store.JobFilter) ([]types.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.Job
	for _, job := range s.jobs {
		if filter.Date != "" && job.ScheduledDate != filter.Date {
			continue
		}
		if filter.EmployeeID != "" && job.AssignedEmployeeID != filter.EmployeeID {
			continue
		}
		if filter.Unassigned && job.AssignedEmployeeID != "" {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, job.Status) {
			continue
		}
		out = append(out, copyJob(job))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) AssignJob(_ context.Context, jobID, employeeID, employeeName string) (*types.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, nil
	}
	if job.AssignedEmployeeID != "" && job.AssignedEmployeeID != employeeID {
		return nil, types.ErrAssignmentConflict
	}
	if !job.Status.IsAssignable() {
		return nil, &types.JobStateError{JobID: jobID, Status: job.Status, AssigneeID: job.AssignedEmployeeID}
	}

	job.AssignedEmployeeID = employeeID
	job.AssignedEmployeeName = employeeName
	job.Status = types.JobStatusPending
	job.UpdatedAt = s.Now()
	s.jobs[jobID] = job

	out := copyJob(job)
	return &out, nil
}

func (s *Store) UpdateJob(_ context.Context, jobID string, update types.JobUpdate) (*types.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, nil
	}
	if update.ExpectStatus != nil && job.Status != *update.ExpectStatus {
		return nil, store.ErrStatusConflict
	}

	if update.Status != nil {
		job.Status = *update.Status
	}
	if update.InsidePhotoURL != nil {
		job.InsidePhotoURL = *update.InsidePhotoURL
	}
	if update.OutsidePhotoURL != nil {
		job.OutsidePhotoURL = *update.OutsidePhotoURL
	}
	if update.HasRequiredPhotos != nil {
		job.HasRequiredPhotos = *update.HasRequiredPhotos
	}
	if update.Latitude != nil {
		lat := *update.Latitude
		job.Address.Latitude = &lat
	}
	if update.Longitude != nil {
		lon := *update.Longitude
		job.Address.Longitude = &lon
	}
	now := s.Now()
	if update.MarkCompleted {
		completed := now
		job.CompletedAt = &completed
	}
	job.UpdatedAt = now
	s.jobs[jobID] = job

	out := copyJob(job)
	return &out, nil
}

// ---- employees ----

func (s *Store) GetEmployee(_ context.Context, id string) (*types.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	emp, ok := s.employees[id]
	if !ok {
		return nil, nil
	}
	out := copyEmployee(emp)
	return &out, nil
}

func (s *Store) ListEmployees(_ context.Context, activeOnly bool) ([]types.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.Employee
	for _, emp := range s.employees {
		if activeOnly && !emp.Active {
			continue
		}
		out = append(out, copyEmployee(emp))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---- training ----

func (s *Store) ListTrainingRecords(_ context.Context, employeeID string) ([]types.TrainingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.TrainingRecord
	for _, rec := range s.training[employeeID] {
		out = append(out, copyTraining(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModuleID < out[j].ModuleID })
	return out, nil
}

func (s *Store) SaveTrainingRecord(_ context.Context, rec *types.TrainingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byModule := s.training[rec.EmployeeID]
	if byModule == nil {
		byModule = map[string]types.TrainingRecord{}
		s.training[rec.EmployeeID] = byModule
	}
	if existing, ok := byModule[rec.ModuleID]; ok && rec.ID == "" {
		rec.ID = existing.ID
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.UpdatedAt = s.Now()
	byModule[rec.ModuleID] = copyTraining(*rec)
	return nil
}

// ---- audit ----

func (s *Store) AppendAuditEvent(_ context.Context, event *types.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.Now()
	}
	s.audit = append(s.audit, *event)
	return nil
}

func containsStatus(statuses []types.JobStatus, s types.JobStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func copyJob(j types.Job) types.Job {
	if j.Address.Latitude != nil {
		lat := *j.Address.Latitude
		j.Address.Latitude = &lat
	}
	if j.Address.Longitude != nil {
		lon := *j.Address.Longitude
		j.Address.Longitude = &lon
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		j.CompletedAt = &t
	}
	return j
}

func copyEmployee(e types.Employee) types.Employee {
	e.Counties = append([]string(nil), e.Counties...)
	e.Zones = append([]string(nil), e.Zones...)
	return e
}

func copyTraining(r types.TrainingRecord) types.TrainingRecord {
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		r.CompletedAt = &t
	}
	if r.ExpiresAt != nil {
		t := *r.ExpiresAt
		r.ExpiresAt = &t
	}
	return r
}
