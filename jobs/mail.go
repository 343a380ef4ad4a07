package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/hibiken/asynq"
)

// Mailer delivers transactional mail over plain SMTP.
type Mailer struct {
	addr   string
	from   string
	logger *slog.Logger
}

// NewMailer constructs a Mailer for the given SMTP endpoint.
func NewMailer(host string, port int, from string, logger *slog.Logger) *Mailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mailer{
		addr:   fmt.Sprintf("%s:%d", host, port),
		from:   from,
		logger: logger,
	}
}

// Send delivers a single plain-text message.
func (m *Mailer) Send(to, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + m.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")
	return smtp.SendMail(m.addr, nil, m.from, []string{to}, []byte(msg))
}

// SendEmailJob processes TaskTypeSendEmail tasks.
type SendEmailJob struct {
	Mailer *Mailer
	Logger *slog.Logger
}

// NewSendEmailJob wires dependencies for the mail handler.
func NewSendEmailJob(mailer *Mailer, logger *slog.Logger) *SendEmailJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SendEmailJob{Mailer: mailer, Logger: logger}
}

// Handle delivers one queued message. Malformed payloads are dropped;
// delivery failures are retried by Asynq.
func (j *SendEmailJob) Handle(_ context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if err := j.Mailer.Send(payload.To, payload.Subject, payload.Body); err != nil {
		j.Logger.Error("send mail", slog.String("to", payload.To), slog.Any("error", err))
		return err
	}
	j.Logger.Info("mail delivered", slog.String("to", payload.To), slog.String("subject", payload.Subject))
	return nil
}
