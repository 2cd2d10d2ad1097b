package fieldwork

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonathan/bin-crew/internal/audit"
	"github.com/jonathan/bin-crew/internal/certification"
	"github.com/jonathan/bin-crew/internal/earnings"
	"github.com/jonathan/bin-crew/internal/outbox"
	"github.com/jonathan/bin-crew/internal/store/memory"
	"github.com/jonathan/bin-crew/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, opts ...Option) (*Service, *memory.Store) {
	t.Helper()
	s := memory.New()
	s.PutEmployee(types.Employee{ID: "E1", Name: "Erin", Active: true})
	s.PutJob(types.Job{ID: "J1", ScheduledDate: "2024-03-10", AssignedEmployeeID: "E1", Status: types.JobStatusPending})
	s.PutJob(types.Job{ID: "J2", ScheduledDate: "2024-03-10", AssignedEmployeeID: "E2", Status: types.JobStatusPending})
	s.PutJob(types.Job{ID: "J3", ScheduledDate: "2024-03-10", AssignedEmployeeID: "E1", Status: types.JobStatusCancelled})
	opts = append([]Option{WithAudit(audit.NewRecorder(s, outbox.Inline{}, nil))}, opts...)
	return NewService(s, opts...), s
}

func photo(kind string) types.PhotoRequest {
	return types.PhotoRequest{Kind: kind, URL: "https://photos.example.com/" + kind + ".jpg"}
}

func TestService_FullLifecycle(t *testing.T) {
	svc, s := setup(t)
	ctx := context.Background()

	job, err := svc.Start(ctx, "E1", "J1")
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusInProgress, job.Status)

	_, err = svc.RecordPhoto(ctx, "E1", "J1", photo(PhotoInside))
	require.NoError(t, err)
	job, err = svc.RecordPhoto(ctx, "E1", "J1", photo("OUTSIDE"))
	require.NoError(t, err)
	assert.Equal(t, "https://photos.example.com/outside.jpg", job.OutsidePhotoURL)

	job, err = svc.Complete(ctx, "E1", "J1")
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusCompleted, job.Status)
	assert.True(t, job.HasRequiredPhotos)
	require.NotNil(t, job.CompletedAt)
	assert.True(t, earnings.Payable(job))

	kinds := []string{}
	for _, e := range s.AuditEvents() {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []string{types.AuditJobStarted, types.AuditJobCompleted}, kinds)
}

func TestService_StartIsIdempotent(t *testing.T) {
	svc, s := setup(t)
	ctx := context.Background()

	_, err := svc.Start(ctx, "E1", "J1")
	require.NoError(t, err)
	job, err := svc.Start(ctx, "E1", "J1")
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusInProgress, job.Status)
	assert.Len(t, s.AuditEvents(), 1)
}

func TestService_CompleteRequiresBothPhotos(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Start(ctx, "E1", "J1")
	require.NoError(t, err)
	_, err = svc.RecordPhoto(ctx, "E1", "J1", photo(PhotoInside))
	require.NoError(t, err)

	_, err = svc.Complete(ctx, "E1", "J1")
	var ve *types.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "photos", ve.Field)
	assert.Equal(t, "missing outside photo", ve.Message)
}

func TestService_StateConflicts(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	var ce *types.ConflictError

	// Not yet started.
	_, err := svc.Complete(ctx, "E1", "J1")
	assert.True(t, errors.As(err, &ce))
	_, err = svc.RecordPhoto(ctx, "E1", "J1", photo(PhotoInside))
	assert.True(t, errors.As(err, &ce))

	// Someone else's job.
	_, err = svc.Start(ctx, "E1", "J2")
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "not assigned to this employee", ce.Reason)

	// Terminal job.
	_, err = svc.Start(ctx, "E1", "J3")
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "cannot start a cancelled job", ce.Reason)

	// Editing a completed job.
	_, err = svc.Start(ctx, "E1", "J1")
	require.NoError(t, err)
	_, err = svc.RecordPhoto(ctx, "E1", "J1", photo(PhotoInside))
	require.NoError(t, err)
	_, err = svc.RecordPhoto(ctx, "E1", "J1", photo(PhotoOutside))
	require.NoError(t, err)
	_, err = svc.Complete(ctx, "E1", "J1")
	require.NoError(t, err)

	_, err = svc.RecordPhoto(ctx, "E1", "J1", photo(PhotoInside))
	assert.True(t, errors.As(err, &ce))
	_, err = svc.Complete(ctx, "E1", "J1")
	assert.True(t, errors.As(err, &ce))
}

func TestService_Validation(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	var ve *types.ValidationError

	_, err := svc.RecordPhoto(ctx, "E1", "J1", types.PhotoRequest{Kind: "roof", URL: "https://x/y.jpg"})
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "kind", ve.Field)

	_, err = svc.RecordPhoto(ctx, "E1", "J1", types.PhotoRequest{Kind: "inside", URL: "not a url"})
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "url", ve.Field)

	_, err = svc.Start(ctx, "", "J1")
	assert.True(t, errors.As(err, &ve))

	_, err = svc.Start(ctx, "E1", "missing")
	assert.True(t, types.IsNotFound(err))
}

func TestService_StartRequiresCertification(t *testing.T) {
	s := memory.New()
	s.PutEmployee(types.Employee{ID: "E1", Active: true})
	s.PutJob(types.Job{ID: "J1", AssignedEmployeeID: "E1", Status: types.JobStatusPending})

	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	gate := certification.NewGate(s, s, certification.WithClock(func() time.Time { return now }))
	svc := NewService(s, WithCertifier(gate))
	ctx := context.Background()

	_, err := svc.Start(ctx, "E1", "J1")
	var certErr *types.CertificationError
	require.True(t, errors.As(err, &certErr))
	assert.Equal(t, types.CertificationNotStarted, certErr.Status.Status)

	for _, m := range certification.RequiredModules() {
		_, err := gate.CompleteModule(ctx, "E1", m.ID, 90)
		require.NoError(t, err)
	}
	job, err := svc.Start(ctx, "E1", "J1")
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusInProgress, job.Status)
}
