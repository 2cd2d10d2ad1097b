// Package certification derives an employee's certification state from training
// records and gates clock-in and route work on it.
package certification

import (
	"context"
	"fmt"
	"time"

	"github.com/jonathan/bin-crew/internal/audit"
	"github.com/jonathan/bin-crew/internal/store"
	"github.com/jonathan/bin-crew/internal/types"
	"go.uber.org/zap"
)

// CertifiedNotifier is told when an employee becomes fully certified.
type CertifiedNotifier interface {
	Certified(emp *types.Employee)
}

// Gate computes certification status and applies training updates.
type Gate struct {
	training  store.Training
	employees store.Employees
	notifier  CertifiedNotifier
	audit     *audit.Recorder
	now       func() time.Time
	logger    *zap.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithNotifier sets the certification notifier.
func WithNotifier(n CertifiedNotifier) Option {
	return func(g *Gate) { g.notifier = n }
}

// WithAudit sets the audit recorder.
func WithAudit(r *audit.Recorder) Option {
	return func(g *Gate) { g.audit = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

// NewGate creates a gate over the given stores.
func NewGate(training store.Training, employees store.Employees, opts ...Option) *Gate {
	g := &Gate{
		training:  training,
		employees: employees,
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RecheckResult reports what a recheck changed.
type RecheckResult struct {
	EmployeeID string                     `json:"employee_id"`
	Expired    []string                   `json:"expired"`
	Backfilled []string                   `json:"backfilled"`
	Status     *types.CertificationStatus `json:"status"`
}

// Changed reports whether the recheck modified any record.
func (r *RecheckResult) Changed() bool {
	return len(r.Expired) > 0 || len(r.Backfilled) > 0
}

// Evaluate computes the certification status from training records at time now.
// Records for modules that are not required are ignored.
func Evaluate(employeeID string, records []types.TrainingRecord, now time.Time) *types.CertificationStatus {
	byModule := make(map[string]types.TrainingRecord, len(records))
	for _, r := range records {
		byModule[r.ModuleID] = r
	}

	status := &types.CertificationStatus{
		EmployeeID:     employeeID,
		MissingModules: []string{},
		ExpiredModules: []string{},
		Modules:        make([]types.ModuleProgress, 0, len(requiredModules)),
	}

	satisfied := 0
	for _, m := range requiredModules {
		progress := types.ModuleProgress{ModuleID: m.ID, Title: m.Title, State: types.ModuleMissing}
		if rec, ok := byModule[m.ID]; ok {
			progress.State = moduleState(rec, now)
			progress.CompletedAt = rec.CompletedAt
			if rec.CompletedAt != nil {
				exp := expiresAt(rec)
				progress.ExpiresAt = &exp
			}
		}

		switch progress.State {
		case types.ModuleSatisfied:
			satisfied++
		case types.ModuleExpired:
			status.ExpiredModules = append(status.ExpiredModules, m.ID)
		default:
			status.MissingModules = append(status.MissingModules, m.ID)
		}
		status.Modules = append(status.Modules, progress)
	}

	switch {
	case satisfied == len(requiredModules):
		status.Status = types.CertificationCertified
	case len(status.ExpiredModules) > 0:
		status.Status = types.CertificationExpired
	case satisfied > 0:
		status.Status = types.CertificationInProgress
	default:
		status.Status = types.CertificationNotStarted
	}
	status.CanClockIn = status.Status == types.CertificationCertified
	status.CanWorkRoutes = status.CanClockIn
	return status
}

func moduleState(rec types.TrainingRecord, now time.Time) types.ModuleState {
	if rec.CompletedAt == nil {
		return types.ModuleMissing
	}
	exp := expiresAt(rec)
	if rec.ForcedRetraining || rec.Expired || !now.Before(exp) || !rec.CompletedAt.Before(exp) {
		return types.ModuleExpired
	}
	return types.ModuleSatisfied
}

// expiresAt returns the stored expiry or completion plus the validity period.
// rec.CompletedAt must be set.
func expiresAt(rec types.TrainingRecord) time.Time {
	if rec.ExpiresAt != nil {
		return *rec.ExpiresAt
	}
	return rec.CompletedAt.Add(ValidityPeriod)
}

// Status returns the employee's current certification status.
func (g *Gate) Status(ctx context.Context, employeeID string) (*types.CertificationStatus, error) {
	if _, err := g.employee(ctx, employeeID); err != nil {
		return nil, err
	}
	return g.status(ctx, employeeID)
}

// Require returns the status, or a *types.CertificationError when the employee
// may not clock in.
func (g *Gate) Require(ctx context.Context, employeeID string) (*types.CertificationStatus, error) {
	status, err := g.Status(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if !status.CanClockIn {
		return status, &types.CertificationError{Status: status}
	}
	return status, nil
}

func (g *Gate) status(ctx context.Context, employeeID string) (*types.CertificationStatus, error) {
	records, err := g.training.ListTrainingRecords(ctx, employeeID)
	if err != nil {
		return nil, &types.UnavailableError{Service: "training store", Err: err}
	}
	return Evaluate(employeeID, records, g.now()), nil
}

// Recheck marks lapsed or forced records as expired and backfills missing expiry
// timestamps. Running it again without intervening changes modifies nothing.
func (g *Gate) Recheck(ctx context.Context, employeeID string) (*RecheckResult, error) {
	if _, err := g.employee(ctx, employeeID); err != nil {
		return nil, err
	}
	records, err := g.training.ListTrainingRecords(ctx, employeeID)
	if err != nil {
		return nil, &types.UnavailableError{Service: "training store", Err: err}
	}

	now := g.now()
	result := &RecheckResult{EmployeeID: employeeID, Expired: []string{}, Backfilled: []string{}}
	for i := range records {
		rec := &records[i]
		if rec.CompletedAt == nil {
			continue
		}
		changed := false
		if rec.ExpiresAt == nil {
			exp := rec.CompletedAt.Add(ValidityPeriod)
			rec.ExpiresAt = &exp
			result.Backfilled = append(result.Backfilled, rec.ModuleID)
			changed = true
		}
		if !rec.Expired && (rec.ForcedRetraining || !now.Before(*rec.ExpiresAt)) {
			rec.Expired = true
			result.Expired = append(result.Expired, rec.ModuleID)
			changed = true
		}
		if !changed {
			continue
		}
		if err := g.training.SaveTrainingRecord(ctx, rec); err != nil {
			return nil, &types.UnavailableError{Service: "training store", Err: err}
		}
		if rec.Expired {
			g.audit.Record(types.AuditTrainingExpired, rec.EmployeeID, "", map[string]any{"module_id": rec.ModuleID})
		}
	}

	result.Status = Evaluate(employeeID, records, now)
	if result.Changed() {
		g.logger.Info("certification recheck updated records",
			zap.String("employee_id", employeeID),
			zap.Strings("expired", result.Expired),
			zap.Strings("backfilled", result.Backfilled),
			zap.String("status", string(result.Status.Status)))
	}
	return result, nil
}

// RecheckAll runs Recheck for every active employee.
func (g *Gate) RecheckAll(ctx context.Context) ([]*RecheckResult, error) {
	employees, err := g.employees.ListEmployees(ctx, true)
	if err != nil {
		return nil, &types.UnavailableError{Service: "employee store", Err: err}
	}
	results := make([]*RecheckResult, 0, len(employees))
	for _, emp := range employees {
		res, err := g.Recheck(ctx, emp.ID)
		if err != nil {
			return results, fmt.Errorf("recheck %s: %w", emp.ID, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// CompleteModule records a training attempt. A passing score completes the module
// and restarts its validity period. A failing score on a module with an unexpired
// pass is audited but does not replace that pass.
func (g *Gate) CompleteModule(ctx context.Context, employeeID, moduleID string, score int) (*types.CertificationStatus, error) {
	if _, ok := LookupModule(moduleID); !ok {
		return nil, &types.ValidationError{Field: "module_id", Message: fmt.Sprintf("unknown training module %q", moduleID)}
	}
	if score < 0 || score > 100 {
		return nil, &types.ValidationError{Field: "score", Message: "must be between 0 and 100"}
	}
	emp, err := g.employee(ctx, employeeID)
	if err != nil {
		return nil, err
	}

	records, err := g.training.ListTrainingRecords(ctx, employeeID)
	if err != nil {
		return nil, &types.UnavailableError{Service: "training store", Err: err}
	}
	now := g.now()
	before := Evaluate(employeeID, records, now)

	passed := score >= PassingScore
	rec := findRecord(records, moduleID)
	if rec == nil {
		rec = &types.TrainingRecord{EmployeeID: employeeID, ModuleID: moduleID}
	}
	// A failed retake leaves a standing pass in place until it expires or is
	// revoked; the attempt is still audited.
	standing := moduleState(*rec, now) == types.ModuleSatisfied
	if passed || !standing {
		rec.Score = score
		rec.Passed = passed
		if passed {
			completed := now
			exp := now.Add(ValidityPeriod)
			rec.CompletedAt = &completed
			rec.ExpiresAt = &exp
			rec.ForcedRetraining = false
			rec.Expired = false
		}
		if err := g.training.SaveTrainingRecord(ctx, rec); err != nil {
			return nil, &types.UnavailableError{Service: "training store", Err: err}
		}
	}

	after, err := g.status(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	g.audit.Record(types.AuditTrainingCompleted, employeeID, employeeID, map[string]any{
		"module_id": moduleID,
		"score":     score,
		"passed":    passed,
	})
	if after.Status == types.CertificationCertified && before.Status != types.CertificationCertified && g.notifier != nil {
		g.notifier.Certified(emp)
	}
	return after, nil
}

// ForceRetraining flags a module so the employee must pass it again.
func (g *Gate) ForceRetraining(ctx context.Context, employeeID, moduleID string) (*types.CertificationStatus, error) {
	if _, ok := LookupModule(moduleID); !ok {
		return nil, &types.ValidationError{Field: "module_id", Message: fmt.Sprintf("unknown training module %q", moduleID)}
	}
	if _, err := g.employee(ctx, employeeID); err != nil {
		return nil, err
	}
	records, err := g.training.ListTrainingRecords(ctx, employeeID)
	if err != nil {
		return nil, &types.UnavailableError{Service: "training store", Err: err}
	}

	rec := findRecord(records, moduleID)
	if rec == nil {
		rec = &types.TrainingRecord{EmployeeID: employeeID, ModuleID: moduleID}
	}
	rec.ForcedRetraining = true
	if err := g.training.SaveTrainingRecord(ctx, rec); err != nil {
		return nil, &types.UnavailableError{Service: "training store", Err: err}
	}
	g.audit.Record(types.AuditRetrainingRequired, employeeID, "", map[string]any{"module_id": moduleID})
	return g.status(ctx, employeeID)
}

func (g *Gate) employee(ctx context.Context, employeeID string) (*types.Employee, error) {
	if employeeID == "" {
		return nil, &types.ValidationError{Field: "employee_id", Message: "is required"}
	}
	emp, err := g.employees.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, &types.UnavailableError{Service: "employee store", Err: err}
	}
	if emp == nil {
		return nil, &types.NotFoundError{Entity: "employee", ID: employeeID}
	}
	return emp, nil
}

func findRecord(records []types.TrainingRecord, moduleID string) *types.TrainingRecord {
	for i := range records {
		if records[i].ModuleID == moduleID {
			return &records[i]
		}
	}
	return nil
}
