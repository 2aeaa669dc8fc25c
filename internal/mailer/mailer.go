// Package mailer delivers password reset codes.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/bytebuddy/bytebuddy/internal/auth"
)

// Mailer sends a reset code to its owner.
type Mailer interface {
	SendResetCode(ctx context.Context, msg ResetCodeMessage) error
}

// ResetCodeMessage is everything needed to compose a reset mail.
type ResetCodeMessage struct {
	To        string
	Name      string
	Code      string
	ExpiresAt time.Time
}

// LogMailer records that a code was issued without sending anything.
// The code itself is never logged.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a mailer that only logs.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger.With(slog.String("component", "mailer"))}
}

// SendResetCode logs the delivery.
func (m *LogMailer) SendResetCode(_ context.Context, msg ResetCodeMessage) error {
	m.logger.Info("reset code issued",
		slog.String("recipient", auth.Fingerprint(msg.To)),
		slog.Time("expires_at", msg.ExpiresAt),
	)
	return nil
}

// HTTPMailer posts reset mails to a transactional mail API.
type HTTPMailer struct {
	client *resty.Client
	url    string
}

type mailRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// NewHTTPMailer creates a mailer for the endpoint at url.
func NewHTTPMailer(url, apiKey string, timeout time.Duration) *HTTPMailer {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		client.SetHeader("Authorization", "Bearer "+apiKey)
	}
	return &HTTPMailer{client: client, url: url}
}

// SendResetCode delivers the code by mail.
func (m *HTTPMailer) SendResetCode(ctx context.Context, msg ResetCodeMessage) error {
	body := mailRequest{
		To:      msg.To,
		Subject: "Your ByteBuddy verification code",
		Text:    composeResetText(msg),
	}

	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(m.url)
	if err != nil {
		return fmt.Errorf("failed to send reset mail: %w", err)
	}
	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return fmt.Errorf("failed to send reset mail, status: %d", resp.StatusCode())
	}
	return nil
}

func composeResetText(msg ResetCodeMessage) string {
	greeting := "Hello"
	if msg.Name != "" {
		greeting = "Hello " + msg.Name
	}
	minutes := int(time.Until(msg.ExpiresAt).Round(time.Minute).Minutes())
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("%s,\n\nYour verification code is %s. It expires in %d minutes.\n\nIf you did not request a password reset, you can ignore this message.\n",
		greeting, msg.Code, minutes)
}
