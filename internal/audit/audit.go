// Package audit writes best-effort audit events through the outbox.
package audit

import (
	"context"

	"github.com/jonathan/bin-crew/internal/outbox"
	"github.com/jonathan/bin-crew/internal/store"
	"github.com/jonathan/bin-crew/internal/types"
	"go.uber.org/zap"
)

// Recorder appends audit events asynchronously. A failed write is logged by the
// outbox and otherwise ignored.
type Recorder struct {
	store  store.Audit
	queue  outbox.Enqueuer
	logger *zap.Logger
}

// NewRecorder creates a recorder. A nil store makes Record a no-op.
func NewRecorder(s store.Audit, queue outbox.Enqueuer, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{store: s, queue: queue, logger: logger}
}

// Record enqueues one event.
func (r *Recorder) Record(kind, entityID, actorID string, detail map[string]any) {
	if r == nil || r.store == nil {
		return
	}
	event := &types.AuditEvent{Kind: kind, EntityID: entityID, ActorID: actorID, Detail: detail}
	err := r.queue.Enqueue("audit", func(ctx context.Context) error {
		return r.store.AppendAuditEvent(ctx, event)
	})
	if err != nil {
		r.logger.Warn("failed to enqueue audit event",
			zap.String("kind", kind),
			zap.String("entity_id", entityID),
			zap.Error(err))
	}
}
