package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonathan/bin-crew/internal/store"
	"github.com/jonathan/bin-crew/internal/types"
)

const jobColumns = `id, customer_name, customer_email, street, city, county, zip,
	latitude, longitude, scheduled_date, time_window, status, job_status,
	assigned_employee_id, assigned_employee_name, inside_photo_url, outside_photo_url,
	has_required_photos, partner_id, completed_at, created_at, updated_at`

// statusExpr is the effective status of a row. job_status wins over the legacy
// status column and a row with neither is unassigned.
const statusExpr = `COALESCE(NULLIF(job_status, ''), NULLIF(status, ''), 'unassigned')`

// statusColumns returns the values for the status and job_status columns. Every
// write of a job status goes through here so the pair cannot drift.
func statusColumns(s types.JobStatus) (status, jobStatus string) {
	return string(s), string(s)
}

// readStatus resolves the persisted status pair, preferring job_status.
func readStatus(jobStatus, legacy *string) (types.JobStatus, error) {
	if jobStatus != nil && strings.TrimSpace(*jobStatus) != "" {
		return types.ParseJobStatus(*jobStatus)
	}
	if legacy != nil {
		return types.ParseJobStatus(*legacy)
	}
	return types.JobStatusUnassigned, nil
}

func scanJob(row rowScanner) (*types.Job, error) {
	var j types.Job
	var legacyStatus, jobStatus, assigneeID, assigneeName *string
	err := row.Scan(&j.ID, &j.CustomerName, &j.CustomerEmail,
		&j.Address.Street, &j.Address.City, &j.Address.County, &j.Address.Zip,
		&j.Address.Latitude, &j.Address.Longitude, &j.ScheduledDate, &j.TimeWindow,
		&legacyStatus, &jobStatus, &assigneeID, &assigneeName,
		&j.InsidePhotoURL, &j.OutsidePhotoURL, &j.HasRequiredPhotos, &j.PartnerID,
		&j.CompletedAt, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}

	status, err := readStatus(jobStatus, legacyStatus)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", j.ID, err)
	}
	j.Status = status
	if assigneeID != nil {
		j.AssignedEmployeeID = *assigneeID
	}
	if assigneeName != nil {
		j.AssignedEmployeeName = *assigneeName
	}
	return &j, nil
}

// CreateJob inserts a job. An empty ID is assigned a UUID and an empty status is
// stored as unassigned.
func (db *DB) CreateJob(ctx context.Context, job *types.Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = types.JobStatusUnassigned
	}
	status, jobStatus := statusColumns(job.Status)

	err := db.pool.QueryRow(ctx,
		`INSERT INTO jobs (id, customer_name, customer_email, street, city, county, zip,
			latitude, longitude, scheduled_date, time_window, status, job_status,
			assigned_employee_id, assigned_employee_name, inside_photo_url, outside_photo_url,
			has_required_photos, partner_id, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			NULLIF($14, ''), NULLIF($15, ''), $16, $17, $18, $19, $20)
		 RETURNING created_at, updated_at`,
		job.ID, job.CustomerName, job.CustomerEmail,
		job.Address.Street, job.Address.City, job.Address.County, job.Address.Zip,
		job.Address.Latitude, job.Address.Longitude, job.ScheduledDate, job.TimeWindow,
		status, jobStatus, job.AssignedEmployeeID, job.AssignedEmployeeName,
		job.InsidePhotoURL, job.OutsidePhotoURL, job.HasRequiredPhotos, job.PartnerID,
		job.CompletedAt,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID
func (db *DB) GetJob(ctx context.Context, id string) (*types.Job, error) {
	job, err := scanJob(db.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// buildJobQuery renders the ListJobs query for filter.
func buildJobQuery(filter store.JobFilter) (string, []any) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	args := []any{}
	argNum := 1

	if filter.Date != "" {
		query += fmt.Sprintf(" AND scheduled_date = $%d", argNum)
		args = append(args, filter.Date)
		argNum++
	}
	if filter.EmployeeID != "" {
		query += fmt.Sprintf(" AND assigned_employee_id = $%d", argNum)
		args = append(args, filter.EmployeeID)
		argNum++
	}
	if filter.Unassigned {
		query += " AND (assigned_employee_id IS NULL OR assigned_employee_id = '')"
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		query += fmt.Sprintf(" AND %s = ANY($%d)", statusExpr, argNum)
		args = append(args, statuses)
	}

	query += " ORDER BY created_at ASC, id ASC"
	return query, args
}

// ListJobs retrieves jobs matching filter, oldest first
func (db *DB) ListJobs(ctx context.Context, filter store.JobFilter) ([]types.Job, error) {
	query, args := buildJobQuery(filter)
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []types.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// AssignJob sets the assignee in a single conditional UPDATE. The row is only
// written when it has no assignee or is already assigned to employeeID, and its
// effective status is still unassigned or pending.
func (db *DB) AssignJob(ctx context.Context, jobID, employeeID, employeeName string) (*types.Job, error) {
	job, err := scanJob(db.pool.QueryRow(ctx, assignJobQuery, jobID, employeeID, employeeName))
	if err == nil {
		return job, nil
	}
	if err != pgx.ErrNoRows {
		return nil, fmt.Errorf("failed to assign job: %w", err)
	}

	// Nothing matched; report why from the current row.
	current, err := db.GetJob(ctx, jobID)
	if err != nil || current == nil {
		return nil, err
	}
	return nil, assignRefusal(current, employeeID)
}

var assignJobQuery = func() string {
	status, jobStatus := statusColumns(types.JobStatusPending)
	return fmt.Sprintf(`UPDATE jobs
		 SET assigned_employee_id = $2, assigned_employee_name = $3,
		     status = '%s', job_status = '%s', updated_at = NOW()
		 WHERE id = $1
		   AND (assigned_employee_id IS NULL OR assigned_employee_id = '' OR assigned_employee_id = $2)
		   AND %s IN ('%s', '%s')
		 RETURNING `, status, jobStatus, statusExpr, types.JobStatusUnassigned, types.JobStatusPending) + jobColumns
}()

// assignRefusal explains why a conditional assignment did not write current.
func assignRefusal(current *types.Job, employeeID string) error {
	if current.AssignedEmployeeID != "" && current.AssignedEmployeeID != employeeID {
		return types.ErrAssignmentConflict
	}
	return &types.JobStateError{JobID: current.ID, Status: current.Status, AssigneeID: current.AssignedEmployeeID}
}

// buildJobUpdate renders the UPDATE statement for a partial job update.
func buildJobUpdate(jobID string, update types.JobUpdate) (string, []any) {
	sets := []string{}
	args := []any{jobID}
	argNum := 2

	set := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argNum))
		args = append(args, value)
		argNum++
	}

	if update.Status != nil {
		status, jobStatus := statusColumns(*update.Status)
		set("status", status)
		set("job_status", jobStatus)
	}
	if update.InsidePhotoURL != nil {
		set("inside_photo_url", *update.InsidePhotoURL)
	}
	if update.OutsidePhotoURL != nil {
		set("outside_photo_url", *update.OutsidePhotoURL)
	}
	if update.HasRequiredPhotos != nil {
		set("has_required_photos", *update.HasRequiredPhotos)
	}
	if update.Latitude != nil {
		set("latitude", *update.Latitude)
	}
	if update.Longitude != nil {
		set("longitude", *update.Longitude)
	}
	if update.MarkCompleted {
		sets = append(sets, "completed_at = NOW()")
	}
	sets = append(sets, "updated_at = NOW()")

	query := "UPDATE jobs SET " + strings.Join(sets, ", ") + " WHERE id = $1"
	if update.ExpectStatus != nil {
		query += fmt.Sprintf(" AND %s = $%d", statusExpr, argNum)
		args = append(args, string(*update.ExpectStatus))
	}
	query += " RETURNING " + jobColumns
	return query, args
}

// UpdateJob applies a partial update. With ExpectStatus set, the write only happens
// if the persisted status still matches, otherwise store.ErrStatusConflict.
func (db *DB) UpdateJob(ctx context.Context, jobID string, update types.JobUpdate) (*types.Job, error) {
	query, args := buildJobUpdate(jobID, update)
	job, err := scanJob(db.pool.QueryRow(ctx, query, args...))
	if err == nil {
		return job, nil
	}
	if err != pgx.ErrNoRows {
		return nil, fmt.Errorf("failed to update job: %w", err)
	}
	if update.ExpectStatus == nil {
		return nil, nil
	}

	exists, err := db.jobExists(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return nil, store.ErrStatusConflict
}

func (db *DB) jobExists(ctx context.Context, jobID string) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM jobs WHERE id = $1)`, jobID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check job: %w", err)
	}
	return exists, nil
}
