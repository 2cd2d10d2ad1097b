//nolint:revive // types is a standard Go package name pattern
package types

import "time"

// Audit event kinds.
const (
	AuditJobAssigned        = "job.assigned"
	AuditJobStarted         = "job.started"
	AuditJobCompleted       = "job.completed"
	AuditTrainingCompleted  = "training.completed"
	AuditTrainingExpired    = "training.expired"
	AuditRetrainingRequired = "training.retraining_required"
)

// AuditEvent is an append-only record of a state change.
type AuditEvent struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	EntityID  string         `json:"entity_id"`
	ActorID   string         `json:"actor_id,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// JobUpdate is a partial update of a job. Nil fields are left unchanged.
type JobUpdate struct {
	Status            *JobStatus
	InsidePhotoURL    *string
	OutsidePhotoURL   *string
	HasRequiredPhotos *bool
	Latitude          *float64
	Longitude         *float64
	// MarkCompleted stamps CompletedAt with the store's clock.
	MarkCompleted bool
	// ExpectStatus, when set, makes the update conditional on the persisted status.
	ExpectStatus *JobStatus
}

// StatusPtr returns a pointer to s, for building a JobUpdate.
func StatusPtr(s JobStatus) *JobStatus {
	return &s
}
