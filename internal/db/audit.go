package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonathan/bin-crew/internal/types"
)

// AppendAuditEvent inserts an audit event
func (db *DB) AppendAuditEvent(ctx context.Context, event *types.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	var detail []byte
	if event.Detail != nil {
		var err error
		detail, err = json.Marshal(event.Detail)
		if err != nil {
			return fmt.Errorf("failed to marshal audit detail: %w", err)
		}
	}

	err := db.pool.QueryRow(ctx,
		`INSERT INTO audit_events (id, kind, entity_id, actor_id, detail)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		event.ID, event.Kind, event.EntityID, event.ActorID, detail,
	).Scan(&event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return nil
}

// ListAuditEvents retrieves events for an entity, oldest first
func (db *DB) ListAuditEvents(ctx context.Context, entityID string) ([]types.AuditEvent, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, kind, entity_id, actor_id, detail, created_at
		 FROM audit_events WHERE entity_id = $1
		 ORDER BY created_at ASC, id ASC`,
		entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	events := []types.AuditEvent{}
	for rows.Next() {
		var e types.AuditEvent
		var detail []byte
		if err := rows.Scan(&e.ID, &e.Kind, &e.EntityID, &e.ActorID, &detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if len(detail) > 0 {
			_ = json.Unmarshal(detail, &e.Detail)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	return events, nil
}
