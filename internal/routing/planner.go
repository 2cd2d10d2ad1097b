package routing

import (
	"context"
	"sync/atomic"

	"github.com/jonathan/bin-crew/internal/geocode"
	"github.com/jonathan/bin-crew/internal/schedule"
	"github.com/jonathan/bin-crew/internal/store"
	"github.com/jonathan/bin-crew/internal/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Geocoder resolves an address to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*geocode.Result, error)
}

// Planner builds an employee's route for a date from stored jobs.
type Planner struct {
	jobs      store.Jobs
	employees store.Employees
	geocoder  Geocoder
	logger    *zap.Logger
}

// NewPlanner creates a planner. A nil geocoder disables coordinate backfill.
func NewPlanner(jobs store.Jobs, employees store.Employees, geocoder Geocoder, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{jobs: jobs, employees: employees, geocoder: geocoder, logger: logger}
}

// PlanRoute loads the employee's jobs for date, fills missing coordinates where it
// can, and orders them. Cancelled and rejected jobs are left out.
func (p *Planner) PlanRoute(ctx context.Context, employeeID, date string) (*types.Route, error) {
	if employeeID == "" {
		return nil, &types.ValidationError{Field: "employee_id", Message: "is required"}
	}
	if _, err := schedule.ParseDate(date); err != nil {
		return nil, err
	}
	emp, err := p.employees.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, &types.UnavailableError{Service: "employee store", Err: err}
	}
	if emp == nil {
		return nil, &types.NotFoundError{Entity: "employee", ID: employeeID}
	}

	jobs, err := p.jobs.ListJobs(ctx, store.JobFilter{
		Date:       date,
		EmployeeID: employeeID,
		Statuses: []types.JobStatus{
			types.JobStatusPending,
			types.JobStatusInProgress,
			types.JobStatusCompleted,
		},
	})
	if err != nil {
		return nil, &types.UnavailableError{Service: "job store", Err: err}
	}

	stops := make([]types.Stop, len(jobs))
	for i := range jobs {
		stops[i] = types.StopFromJob(&jobs[i])
	}
	geocoded := p.fillCoordinates(ctx, stops)

	ordered := OptimizeRoute(stops)
	return &types.Route{
		EmployeeID: employeeID,
		Date:       date,
		Stops:      ordered,
		TotalMiles: TotalMiles(ordered),
		Geocoded:   geocoded,
	}, nil
}

// fillCoordinates geocodes stops lacking coordinates. Failures leave the stop
// without coordinates. New coordinates are written back to the job.
func (p *Planner) fillCoordinates(ctx context.Context, stops []types.Stop) int {
	if p.geocoder == nil {
		return 0
	}

	var geocoded atomic.Int32
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range stops {
		if stops[i].Address.HasCoordinates() {
			continue
		}
		address := stops[i].Address.String()
		if address == "" {
			continue
		}
		g.Go(func() error {
			res, err := p.geocoder.Geocode(gCtx, address)
			if err != nil {
				p.logger.Warn("could not geocode stop",
					zap.String("job_id", stops[i].JobID),
					zap.String("address", address),
					zap.Error(err))
				return nil
			}
			lat, lon := res.Latitude, res.Longitude
			if !types.ValidCoordinates(lat, lon) {
				p.logger.Warn("geocoder returned unusable coordinates",
					zap.String("job_id", stops[i].JobID),
					zap.Float64("latitude", lat),
					zap.Float64("longitude", lon))
				return nil
			}
			stops[i].Address.Latitude = &lat
			stops[i].Address.Longitude = &lon
			geocoded.Add(1)

			if _, err := p.jobs.UpdateJob(gCtx, stops[i].JobID, types.JobUpdate{Latitude: &lat, Longitude: &lon}); err != nil {
				p.logger.Warn("failed to persist geocoded coordinates",
					zap.String("job_id", stops[i].JobID),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(geocoded.Load())
}
