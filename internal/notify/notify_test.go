package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonathan/bin-crew/internal/outbox"
	"github.com/jonathan/bin-crew/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestHTTPMailer_Send(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer key-123", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1"}`))
	}))
	defer srv.Close()

	m := NewHTTPMailer(srv.URL, "key-123", "crew@bincrew.test", nil)
	err := m.Send(context.Background(), Message{To: "erin@example.com", Subject: "Hi", HTML: "<p>Hi</p>"})
	require.NoError(t, err)
	assert.Equal(t, "crew@bincrew.test", got.From)
	assert.Equal(t, "erin@example.com", got.To)
}

func TestHTTPMailer_ServerErrorIsUnavailable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"upstream"}`))
	}))
	defer srv.Close()

	m := NewHTTPMailer(srv.URL, "k", "from@x", nil)
	m.client.SetRetryWaitTime(time.Millisecond).SetRetryMaxWaitTime(5 * time.Millisecond)
	err := m.Send(context.Background(), Message{To: "a@b.c"})

	var unavailable *types.UnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, "email", unavailable.Service)
	assert.Equal(t, int32(3), calls.Load(), "initial attempt plus two retries")
}

type recordingMailer struct {
	sent []Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg Message) error {
	m.sent = append(m.sent, msg)
	return m.err
}

func TestNotifier_JobsAssigned(t *testing.T) {
	mailer := &recordingMailer{}
	n := NewNotifier(mailer, outbox.Inline{}, nil)

	emp := &types.Employee{ID: "E1", Name: "Erin", Email: "erin@example.com"}
	n.JobsAssigned(emp, "2024-03-10", []types.Job{
		{ID: "J1", CustomerName: "Pat <Smith>", Address: types.Address{Street: "1 Peach St", City: "Atlanta"}, TimeWindow: "8-10am"},
	})

	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, "erin@example.com", msg.To)
	assert.Contains(t, msg.Subject, "2024-03-10")
	assert.Contains(t, msg.HTML, "1 new cleaning scheduled")
	assert.Contains(t, msg.HTML, "Pat &lt;Smith&gt;")
	assert.Contains(t, msg.HTML, "1 Peach St, Atlanta")
}

func TestNotifier_SkipsWithoutEmailOrJobs(t *testing.T) {
	mailer := &recordingMailer{}
	n := NewNotifier(mailer, outbox.Inline{}, nil)

	n.JobsAssigned(&types.Employee{ID: "E1"}, "2024-03-10", []types.Job{{ID: "J1"}})
	n.JobsAssigned(&types.Employee{ID: "E1", Email: "e@x"}, "2024-03-10", nil)
	n.Certified(&types.Employee{ID: "E1"})

	assert.Empty(t, mailer.sent)
}

func TestNotifier_SendFailureIsSwallowed(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	mailer := &recordingMailer{err: errors.New("down")}
	n := NewNotifier(mailer, outbox.Inline{Logger: zap.New(core)}, nil)

	n.Certified(&types.Employee{ID: "E1", Name: "Erin", Email: "erin@example.com"})

	assert.Len(t, mailer.sent, 1)
	assert.Equal(t, 1, logs.FilterMessage("best-effort task failed").Len())
}

func TestLogMailer(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	require.NoError(t, LogMailer{Logger: zap.New(core)}.Send(context.Background(), Message{To: "a@b"}))
	assert.Equal(t, 1, logs.Len())
}
