package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonathan/bin-crew/internal/types"
)

// ListTrainingRecords retrieves an employee's records ordered by module
func (db *DB) ListTrainingRecords(ctx context.Context, employeeID string) ([]types.TrainingRecord, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, employee_id, module_id, score, passed, completed_at, expires_at,
		        forced_retraining, expired, updated_at
		 FROM training_records
		 WHERE employee_id = $1
		 ORDER BY module_id`,
		employeeID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list training records: %w", err)
	}
	defer rows.Close()

	records := []types.TrainingRecord{}
	for rows.Next() {
		var r types.TrainingRecord
		if err := rows.Scan(&r.ID, &r.EmployeeID, &r.ModuleID, &r.Score, &r.Passed,
			&r.CompletedAt, &r.ExpiresAt, &r.ForcedRetraining, &r.Expired, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan training record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list training records: %w", err)
	}
	return records, nil
}

// SaveTrainingRecord upserts on (employee_id, module_id). The existing row keeps
// its ID; rec.ID and rec.UpdatedAt are set from the stored row.
func (db *DB) SaveTrainingRecord(ctx context.Context, rec *types.TrainingRecord) error {
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}

	err := db.pool.QueryRow(ctx,
		`INSERT INTO training_records (id, employee_id, module_id, score, passed,
			completed_at, expires_at, forced_retraining, expired)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (employee_id, module_id) DO UPDATE SET
			score = EXCLUDED.score, passed = EXCLUDED.passed,
			completed_at = EXCLUDED.completed_at, expires_at = EXCLUDED.expires_at,
			forced_retraining = EXCLUDED.forced_retraining, expired = EXCLUDED.expired,
			updated_at = NOW()
		 RETURNING id, updated_at`,
		id, rec.EmployeeID, rec.ModuleID, rec.Score, rec.Passed,
		rec.CompletedAt, rec.ExpiresAt, rec.ForcedRetraining, rec.Expired,
	).Scan(&rec.ID, &rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save training record %s: %w", rec.ModuleID, err)
	}
	return nil
}
