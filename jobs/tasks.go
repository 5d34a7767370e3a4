package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendVerificationMail delivers the sign-up verification email.
	TaskTypeSendVerificationMail = "mail:send_verification"
	// TaskTypePurgeSessions removes expired session records from postgres.
	TaskTypePurgeSessions = "sessions:purge"
)

// VerificationMailPayload carries the data for one verification email.
type VerificationMailPayload struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// NewVerificationMailTask constructs an Asynq task.
func NewVerificationMailTask(payload VerificationMailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendVerificationMail, data), nil
}

// NewPurgeSessionsTask constructs the scheduled session purge task.
func NewPurgeSessionsTask() *asynq.Task {
	return asynq.NewTask(TaskTypePurgeSessions, nil)
}

// MailConfig carries SMTP settings for outbound mail.
type MailConfig struct {
	Host string
	Port int
	From string
}

// HandleVerificationMail processes TaskTypeSendVerificationMail tasks.
// Delivery goes through the local SMTP relay (Mailpit in development).
func HandleVerificationMail(logger *slog.Logger, cfg MailConfig) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload VerificationMailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.Email == "" {
			return asynq.SkipRetry
		}
		logger.Info("send verification mail",
			slog.String("to", payload.Email),
			slog.String("from", cfg.From),
			slog.String("relay", cfg.Host),
		)
		// TODO: swap the log line for a real SMTP submission once the
		// Mailpit relay is provisioned in deploy.
		return nil
	}
}

// SessionStore deletes expired session rows.
type SessionStore interface {
	PurgeExpiredSessions(ctx context.Context) (int64, error)
}

// HandlePurgeSessions processes TaskTypePurgeSessions tasks.
func HandlePurgeSessions(logger *slog.Logger, store SessionStore) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		purged, err := store.PurgeExpiredSessions(ctx)
		if err != nil {
			return err
		}
		if purged > 0 {
			logger.Info("purged expired sessions", slog.Int64("count", purged))
		}
		return nil
	}
}
