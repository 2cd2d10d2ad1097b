// Package fieldwork moves an assigned job through start, photo documentation and
// completion.
package fieldwork

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jonathan/bin-crew/internal/audit"
	"github.com/jonathan/bin-crew/internal/store"
	"github.com/jonathan/bin-crew/internal/types"
	"go.uber.org/zap"
)

// Photo kinds accepted by RecordPhoto.
const (
	PhotoInside  = "inside"
	PhotoOutside = "outside"
)

// Certifier reports an employee's certification status.
type Certifier interface {
	Status(ctx context.Context, employeeID string) (*types.CertificationStatus, error)
}

// Service applies field actions to jobs.
type Service struct {
	jobs      store.Jobs
	certifier Certifier
	audit     *audit.Recorder
	logger    *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithCertifier requires a current certification before a job can be started.
func WithCertifier(c Certifier) Option { return func(s *Service) { s.certifier = c } }

// WithAudit sets the audit recorder.
func WithAudit(r *audit.Recorder) Option { return func(s *Service) { s.audit = r } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.logger = l } }

// NewService creates a field service.
func NewService(jobs store.Jobs, opts ...Option) *Service {
	s := &Service{jobs: jobs, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start moves a pending job to in_progress. Starting a job already in progress is
// a no-op.
func (s *Service) Start(ctx context.Context, employeeID, jobID string) (*types.Job, error) {
	job, err := s.load(ctx, employeeID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status == types.JobStatusInProgress {
		return job, nil
	}
	if !job.Status.CanTransitionTo(types.JobStatusInProgress) {
		return nil, &types.ConflictError{Entity: "job", ID: jobID, Reason: fmt.Sprintf("cannot start a %s job", job.Status)}
	}

	if s.certifier != nil {
		status, err := s.certifier.Status(ctx, employeeID)
		if err != nil {
			return nil, err
		}
		if !status.CanWorkRoutes {
			return nil, &types.CertificationError{Status: status}
		}
	}

	updated, err := s.update(ctx, jobID, types.JobUpdate{
		Status:       types.StatusPtr(types.JobStatusInProgress),
		ExpectStatus: types.StatusPtr(job.Status),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("job started", zap.String("job_id", jobID), zap.String("employee_id", employeeID))
	s.audit.Record(types.AuditJobStarted, jobID, employeeID, nil)
	return updated, nil
}

// RecordPhoto stores the inside or outside photo URL for a job in progress.
// Recording the same kind again replaces the URL.
func (s *Service) RecordPhoto(ctx context.Context, employeeID, jobID string, req types.PhotoRequest) (*types.Job, error) {
	req.Kind = strings.ToLower(strings.TrimSpace(req.Kind))
	if err := req.Validate(); err != nil {
		return nil, types.FromValidator(err)
	}
	job, err := s.load(ctx, employeeID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != types.JobStatusInProgress {
		return nil, &types.ConflictError{Entity: "job", ID: jobID, Reason: fmt.Sprintf("cannot add photos to a %s job", job.Status)}
	}

	update := types.JobUpdate{ExpectStatus: types.StatusPtr(types.JobStatusInProgress)}
	url := req.URL
	if req.Kind == PhotoInside {
		update.InsidePhotoURL = &url
	} else {
		update.OutsidePhotoURL = &url
	}
	return s.update(ctx, jobID, update)
}

// Complete finishes a job in progress. Both photos must already be recorded.
func (s *Service) Complete(ctx context.Context, employeeID, jobID string) (*types.Job, error) {
	job, err := s.load(ctx, employeeID, jobID)
	if err != nil {
		return nil, err
	}
	if !job.Status.CanTransitionTo(types.JobStatusCompleted) {
		return nil, &types.ConflictError{Entity: "job", ID: jobID, Reason: fmt.Sprintf("cannot complete a %s job", job.Status)}
	}
	var missing []string
	if strings.TrimSpace(job.InsidePhotoURL) == "" {
		missing = append(missing, PhotoInside)
	}
	if strings.TrimSpace(job.OutsidePhotoURL) == "" {
		missing = append(missing, PhotoOutside)
	}
	if len(missing) > 0 {
		return nil, &types.ValidationError{
			Field:   "photos",
			Message: "missing " + strings.Join(missing, " and ") + " photo",
		}
	}

	verified := true
	updated, err := s.update(ctx, jobID, types.JobUpdate{
		Status:            types.StatusPtr(types.JobStatusCompleted),
		HasRequiredPhotos: &verified,
		MarkCompleted:     true,
		ExpectStatus:      types.StatusPtr(types.JobStatusInProgress),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("job completed", zap.String("job_id", jobID), zap.String("employee_id", employeeID))
	s.audit.Record(types.AuditJobCompleted, jobID, employeeID, map[string]any{
		"inside_photo_url":  updated.InsidePhotoURL,
		"outside_photo_url": updated.OutsidePhotoURL,
	})
	return updated, nil
}

func (s *Service) load(ctx context.Context, employeeID, jobID string) (*types.Job, error) {
	if employeeID == "" {
		return nil, &types.ValidationError{Field: "employee_id", Message: "is required"}
	}
	if jobID == "" {
		return nil, &types.ValidationError{Field: "job_id", Message: "is required"}
	}
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, &types.UnavailableError{Service: "job store", Err: err}
	}
	if job == nil {
		return nil, &types.NotFoundError{Entity: "job", ID: jobID}
	}
	if job.AssignedEmployeeID != employeeID {
		return nil, &types.ConflictError{Entity: "job", ID: jobID, Reason: "not assigned to this employee"}
	}
	return job, nil
}

func (s *Service) update(ctx context.Context, jobID string, update types.JobUpdate) (*types.Job, error) {
	job, err := s.jobs.UpdateJob(ctx, jobID, update)
	if errors.Is(err, store.ErrStatusConflict) {
		return nil, &types.ConflictError{Entity: "job", ID: jobID, Reason: "status changed concurrently"}
	}
	if err != nil {
		return nil, &types.UnavailableError{Service: "job store", Err: err}
	}
	if job == nil {
		return nil, &types.NotFoundError{Entity: "job", ID: jobID}
	}
	return job, nil
}
