// Package assignment attaches scheduled jobs to field employees.
//
// Each job in a batch is an independent unit evaluated against its own persisted
// state; a failure never rolls back other jobs. The final write is conditional on
// the persisted assignee, so two concurrent batches can never both claim a job.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonathan/bin-crew/internal/audit"
	"github.com/jonathan/bin-crew/internal/coverage"
	"github.com/jonathan/bin-crew/internal/schedule"
	"github.com/jonathan/bin-crew/internal/store"
	"github.com/jonathan/bin-crew/internal/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultParallelism bounds concurrent per-job work in one batch.
const DefaultParallelism = 8

// Certifier reports an employee's certification status.
type Certifier interface {
	Status(ctx context.Context, employeeID string) (*types.CertificationStatus, error)
}

// Notifier is told about newly assigned jobs.
type Notifier interface {
	JobsAssigned(emp *types.Employee, date string, jobs []types.Job)
}

// Engine runs assignment batches.
type Engine struct {
	jobs        store.Jobs
	employees   store.Employees
	certifier   Certifier
	coverage    *coverage.Table
	notifier    Notifier
	audit       *audit.Recorder
	now         func() time.Time
	location    *time.Location
	parallelism int
	logger      *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithCoverage sets the zone table used by auto-assignment.
func WithCoverage(t *coverage.Table) Option { return func(e *Engine) { e.coverage = t } }

// WithNotifier sets the assignment notifier.
func WithNotifier(n Notifier) Option { return func(e *Engine) { e.notifier = n } }

// WithAudit sets the audit recorder.
func WithAudit(r *audit.Recorder) Option { return func(e *Engine) { e.audit = r } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithLocation sets the time zone that defines "today" for clock-in.
func WithLocation(loc *time.Location) Option { return func(e *Engine) { e.location = loc } }

// WithParallelism bounds concurrent per-job work.
func WithParallelism(n int) Option { return func(e *Engine) { e.parallelism = n } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.logger = l } }

// NewEngine creates an engine. certifier gates auto-assignment.
func NewEngine(jobs store.Jobs, employees store.Employees, certifier Certifier, opts ...Option) *Engine {
	e := &Engine{
		jobs:        jobs,
		employees:   employees,
		certifier:   certifier,
		coverage:    coverage.DefaultTable(),
		now:         time.Now,
		location:    time.Local,
		parallelism: DefaultParallelism,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.parallelism < 1 {
		e.parallelism = 1
	}
	return e
}

// outcome is the result of one job in a batch.
type outcome struct {
	job     *types.Job
	changed bool
	failure string
}

// AssignJobs assigns the requested jobs to one employee. Per-job failures are
// reported in the result; the returned error is reserved for invalid input, an
// unknown employee, or an unreachable employee store.
func (e *Engine) AssignJobs(ctx context.Context, req types.AssignRequest) (*types.AssignResult, error) {
	if err := req.Validate(); err != nil {
		return nil, types.FromValidator(err)
	}
	emp, err := e.employee(ctx, req.EmployeeID)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, emp, dedupe(req.JobIDs), req.ScheduledDate), nil
}

// AutoAssignOnClockIn assigns every unassigned job scheduled today that lies in
// the employee's coverage area. An employee who cannot work routes receives no
// assignments; the result then carries the certification detail.
func (e *Engine) AutoAssignOnClockIn(ctx context.Context, employeeID string) (*types.AssignResult, error) {
	emp, err := e.employee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	today := schedule.FormatDate(e.now().In(e.location))

	cert, err := e.certifier.Status(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if !cert.CanWorkRoutes {
		result := types.NewAssignResult(employeeID, today)
		result.Certification = cert
		e.logger.Info("auto-assignment skipped, employee not certified",
			zap.String("employee_id", employeeID),
			zap.String("certification", string(cert.Status)))
		return result, nil
	}

	pool, err := e.jobs.ListJobs(ctx, store.JobFilter{
		Date:       today,
		Unassigned: true,
		Statuses:   []types.JobStatus{types.JobStatusUnassigned},
	})
	if err != nil {
		return nil, &types.UnavailableError{Service: "job store", Err: err}
	}

	var eligible []string
	for _, job := range pool {
		if e.coverage.IsInCoverage(job.Address.County, job.Address.City, emp.Zones, emp.Counties) {
			eligible = append(eligible, job.ID)
		}
	}
	e.logger.Debug("auto-assignment pool",
		zap.String("employee_id", employeeID),
		zap.String("date", today),
		zap.Int("candidates", len(pool)),
		zap.Int("in_coverage", len(eligible)))

	result := e.run(ctx, emp, eligible, today)
	result.Certification = cert
	return result, nil
}

func (e *Engine) run(ctx context.Context, emp *types.Employee, jobIDs []string, date string) *types.AssignResult {
	outcomes := make([]outcome, len(jobIDs))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for i, id := range jobIDs {
		g.Go(func() error {
			outcomes[i] = e.assignOne(gCtx, emp, id, date)
			return nil
		})
	}
	_ = g.Wait()

	result := types.NewAssignResult(emp.ID, date)
	var newlyAssigned []types.Job
	for i, o := range outcomes {
		if o.failure != "" {
			result.Errors = append(result.Errors, o.failure)
			continue
		}
		result.Assigned = append(result.Assigned, jobIDs[i])
		if o.changed {
			newlyAssigned = append(newlyAssigned, *o.job)
			e.audit.Record(types.AuditJobAssigned, o.job.ID, emp.ID, map[string]any{
				"employee_id":    emp.ID,
				"scheduled_date": o.job.ScheduledDate,
			})
		}
	}
	result.AssignedCount = len(result.Assigned)
	result.FailedCount = len(result.Errors)

	if e.notifier != nil && len(newlyAssigned) > 0 {
		notifyDate := date
		if notifyDate == "" {
			notifyDate = newlyAssigned[0].ScheduledDate
		}
		e.notifier.JobsAssigned(emp, notifyDate, newlyAssigned)
	}

	e.logger.Info("assignment batch finished",
		zap.String("employee_id", emp.ID),
		zap.String("date", date),
		zap.Int("assigned", result.AssignedCount),
		zap.Int("failed", result.FailedCount))
	return result
}

func (e *Engine) assignOne(ctx context.Context, emp *types.Employee, jobID, date string) outcome {
	job, err := e.jobs.GetJob(ctx, jobID)
	if err != nil {
		return e.storeFailure(jobID, err)
	}
	if job == nil {
		return outcome{failure: notFound(jobID)}
	}
	if job.IsAssigned() && job.AssignedEmployeeID != emp.ID {
		return outcome{failure: alreadyAssigned(jobID)}
	}
	if date != "" && job.ScheduledDate != date {
		return outcome{failure: fmt.Sprintf("Cleaning %s is scheduled for %s, not %s", jobID, job.ScheduledDate, date)}
	}
	if job.Status.IsTerminal() {
		return outcome{failure: fmt.Sprintf("Cleaning %s is %s", jobID, job.Status)}
	}
	if job.AssignedEmployeeID == emp.ID && job.Status == types.JobStatusInProgress {
		// Already underway for this employee; rewriting would reset it to pending.
		return outcome{job: job}
	}

	updated, err := e.jobs.AssignJob(ctx, jobID, emp.ID, emp.Name)
	var stateErr *types.JobStateError
	switch {
	case errors.As(err, &stateErr):
		// The job moved on between the read and the write.
		e.logger.Warn("job left assignable state during assignment",
			zap.String("job_id", jobID),
			zap.String("employee_id", emp.ID),
			zap.String("status", string(stateErr.Status)))
		if stateErr.Status == types.JobStatusInProgress && stateErr.AssigneeID == emp.ID {
			job.Status = stateErr.Status
			return outcome{job: job}
		}
		return outcome{failure: fmt.Sprintf("Cleaning %s is %s", jobID, stateErr.Status)}
	case errors.Is(err, types.ErrAssignmentConflict):
		e.logger.Warn("lost assignment race",
			zap.String("job_id", jobID),
			zap.String("employee_id", emp.ID))
		return outcome{failure: alreadyAssigned(jobID)}
	case err != nil:
		return e.storeFailure(jobID, err)
	case updated == nil:
		return outcome{failure: notFound(jobID)}
	}
	return outcome{job: updated, changed: job.AssignedEmployeeID != emp.ID}
}

func (e *Engine) storeFailure(jobID string, err error) outcome {
	e.logger.Error("job store failure during assignment", zap.String("job_id", jobID), zap.Error(err))
	return outcome{failure: fmt.Sprintf("Cleaning %s could not be assigned: job store unavailable", jobID)}
}

func (e *Engine) employee(ctx context.Context, employeeID string) (*types.Employee, error) {
	if employeeID == "" {
		return nil, &types.ValidationError{Field: "employee_id", Message: "is required"}
	}
	emp, err := e.employees.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, &types.UnavailableError{Service: "employee store", Err: err}
	}
	if emp == nil {
		return nil, &types.NotFoundError{Entity: "employee", ID: employeeID}
	}
	return emp, nil
}

func notFound(jobID string) string {
	return fmt.Sprintf("Cleaning %s not found", jobID)
}

func alreadyAssigned(jobID string) string {
	return fmt.Sprintf("Cleaning %s is already assigned to another employee", jobID)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
