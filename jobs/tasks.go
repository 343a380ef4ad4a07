// Package jobs defines the background task catalog and the Asynq
// worker/client wrappers.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeMarketWarmup is the task type for refreshing watchlist quotes.
	TaskTypeMarketWarmup = "market:warmup"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// MarketWarmupPayload lists the symbols whose quotes should be refreshed.
type MarketWarmupPayload struct {
	Symbols []string `json:"symbols"`
}

// NewMarketWarmupTask constructs an Asynq task.
func NewMarketWarmupTask(symbols []string) (*asynq.Task, error) {
	data, err := json.Marshal(MarketWarmupPayload{Symbols: symbols})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeMarketWarmup, data), nil
}
