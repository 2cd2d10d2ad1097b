// Package earnings derives per-employee workload and pay from job records.
// Only photo-verified completions are paid.
package earnings

import (
	"context"
	"strings"

	"github.com/jonathan/bin-crew/internal/schedule"
	"github.com/jonathan/bin-crew/internal/store"
	"github.com/jonathan/bin-crew/internal/types"
)

// PhotoVerified reports whether a job carries the photo evidence required for pay.
func PhotoVerified(j *types.Job) bool {
	return j.HasRequiredPhotos || legacyPhotoEvidence(j)
}

// legacyPhotoEvidence accepts jobs completed before the HasRequiredPhotos flag
// was written. Remove once every completed job has been backfilled with the flag.
func legacyPhotoEvidence(j *types.Job) bool {
	return strings.TrimSpace(j.InsidePhotoURL) != "" && strings.TrimSpace(j.OutsidePhotoURL) != ""
}

// Payable reports whether a job counts toward earnings.
func Payable(j *types.Job) bool {
	return j.Status == types.JobStatusCompleted && PhotoVerified(j)
}

// Aggregator reads job state for reporting.
type Aggregator struct {
	jobs      store.Jobs
	employees store.Employees
}

// NewAggregator creates an aggregator.
func NewAggregator(jobs store.Jobs, employees store.Employees) *Aggregator {
	return &Aggregator{jobs: jobs, employees: employees}
}

// Earnings totals the employee's payable jobs on date.
func (a *Aggregator) Earnings(ctx context.Context, employeeID, date string) (*types.Earnings, error) {
	emp, jobs, err := a.load(ctx, employeeID, date)
	if err != nil {
		return nil, err
	}
	return Summarize(emp, date, jobs), nil
}

// Summarize computes earnings from already-loaded jobs.
func Summarize(emp *types.Employee, date string, jobs []types.Job) *types.Earnings {
	out := &types.Earnings{
		EmployeeID:    emp.ID,
		EmployeeName:  emp.Name,
		Date:          date,
		PayRatePerJob: emp.PayRatePerJob,
		Stops:         []types.StopEarning{},
	}
	for i := range jobs {
		j := &jobs[i]
		if j.AssignedEmployeeID != emp.ID || !Payable(j) {
			continue
		}
		out.CompletedCount++
		out.Stops = append(out.Stops, types.StopEarning{
			JobID:        j.ID,
			CustomerName: j.CustomerName,
			Address:      j.Address.String(),
			Amount:       emp.PayRatePerJob,
		})
	}
	out.TotalEarnings = float64(out.CompletedCount) * emp.PayRatePerJob
	return out
}

// Workload counts the employee's jobs on date. Cancelled and rejected jobs are not
// counted. Completed jobs without photo evidence count as Unverified, not
// Completed.
func (a *Aggregator) Workload(ctx context.Context, employeeID, date string) (*types.Workload, error) {
	_, jobs, err := a.load(ctx, employeeID, date)
	if err != nil {
		return nil, err
	}

	w := &types.Workload{EmployeeID: employeeID, Date: date}
	for i := range jobs {
		j := &jobs[i]
		switch j.Status {
		case types.JobStatusCancelled, types.JobStatusRejected:
			continue
		case types.JobStatusCompleted:
			if PhotoVerified(j) {
				w.Completed++
			} else {
				w.Unverified++
			}
		default:
			w.Remaining++
		}
		w.Assigned++
	}
	return w, nil
}

func (a *Aggregator) load(ctx context.Context, employeeID, date string) (*types.Employee, []types.Job, error) {
	if employeeID == "" {
		return nil, nil, &types.ValidationError{Field: "employee_id", Message: "is required"}
	}
	if _, err := schedule.ParseDate(date); err != nil {
		return nil, nil, err
	}
	emp, err := a.employees.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, nil, &types.UnavailableError{Service: "employee store", Err: err}
	}
	if emp == nil {
		return nil, nil, &types.NotFoundError{Entity: "employee", ID: employeeID}
	}
	jobs, err := a.jobs.ListJobs(ctx, store.JobFilter{Date: date, EmployeeID: employeeID})
	if err != nil {
		return nil, nil, &types.UnavailableError{Service: "job store", Err: err}
	}
	return emp, jobs, nil
}
