// Package notify sends employee notifications through an HTTP email API. Every
// send is dispatched through the outbox so a mail failure never affects the
// operation that triggered it.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jonathan/bin-crew/internal/types"
	"go.uber.org/zap"
)

// Message is a single outbound email.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// Mailer delivers a message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type sendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

type sendResponse struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// HTTPMailer posts messages to a transactional email API.
type HTTPMailer struct {
	client *resty.Client
	from   string
	logger *zap.Logger
}

// NewHTTPMailer creates a mailer for the API at baseURL.
func NewHTTPMailer(baseURL, apiKey, from string, logger *zap.Logger) *HTTPMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetAuthToken(apiKey)

	return &HTTPMailer{client: client, from: from, logger: logger}
}

// Send posts one message.
func (m *HTTPMailer) Send(ctx context.Context, msg Message) error {
	var result sendResponse
	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(sendRequest{From: m.from, To: msg.To, Subject: msg.Subject, HTML: msg.HTML}).
		SetResult(&result).
		SetError(&result).
		Post("/emails")
	if err != nil {
		return &types.UnavailableError{Service: "email", Err: err}
	}
	if resp.IsError() {
		return &types.UnavailableError{
			Service: "email",
			Err:     fmt.Errorf("status %d: %s", resp.StatusCode(), result.Error),
		}
	}

	m.logger.Debug("email sent",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("message_id", result.ID))
	return nil
}

// LogMailer only logs. It is used when no email API is configured.
type LogMailer struct {
	Logger *zap.Logger
}

func (m LogMailer) Send(_ context.Context, msg Message) error {
	if m.Logger != nil {
		m.Logger.Info("email not sent, no provider configured",
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject))
	}
	return nil
}
