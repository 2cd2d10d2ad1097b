package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonathan/bin-crew/internal/types"
)

const employeeColumns = `id, name, email, counties, zones, pay_rate_per_job, active, created_at, updated_at`

func scanEmployee(row rowScanner) (*types.Employee, error) {
	var e types.Employee
	if err := row.Scan(&e.ID, &e.Name, &e.Email, &e.Counties, &e.Zones,
		&e.PayRatePerJob, &e.Active, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if e.Counties == nil {
		e.Counties = []string{}
	}
	if e.Zones == nil {
		e.Zones = []string{}
	}
	return &e, nil
}

// UpsertEmployee inserts an employee or replaces the one with the same ID
func (db *DB) UpsertEmployee(ctx context.Context, emp *types.Employee) error {
	if emp.ID == "" {
		emp.ID = uuid.NewString()
	}
	counties, zones := emp.Counties, emp.Zones
	if counties == nil {
		counties = []string{}
	}
	if zones == nil {
		zones = []string{}
	}

	err := db.pool.QueryRow(ctx,
		`INSERT INTO employees (id, name, email, counties, zones, pay_rate_per_job, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, email = EXCLUDED.email, counties = EXCLUDED.counties,
			zones = EXCLUDED.zones, pay_rate_per_job = EXCLUDED.pay_rate_per_job,
			active = EXCLUDED.active, updated_at = NOW()
		 RETURNING created_at, updated_at`,
		emp.ID, emp.Name, emp.Email, counties, zones, emp.PayRatePerJob, emp.Active,
	).Scan(&emp.CreatedAt, &emp.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert employee: %w", err)
	}
	return nil
}

// GetEmployee retrieves an employee by ID
func (db *DB) GetEmployee(ctx context.Context, id string) (*types.Employee, error) {
	emp, err := scanEmployee(db.pool.QueryRow(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	return emp, nil
}

// ListEmployees retrieves employees ordered by ID
func (db *DB) ListEmployees(ctx context.Context, activeOnly bool) ([]types.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY id`

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	employees := []types.Employee{}
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		employees = append(employees, *emp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	return employees, nil
}
