package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueCritical carries login traffic that a user is waiting on.
	QueueCritical = "critical"
	// TaskTypeSendTwoFactorCode delivers a one-time login code by email.
	TaskTypeSendTwoFactorCode = "auth:2fa:send"
	// TaskTypePurgeLoginSessions removes consumed login sessions.
	TaskTypePurgeLoginSessions = "auth:sessions:purge"
)

// TwoFactorCodePayload describes one code delivery.
type TwoFactorCodePayload struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Code   string `json:"code"`
}

// NewTwoFactorCodeTask constructs an Asynq task. Codes are short lived for the
// user, so retries are few and the task expires quickly.
func NewTwoFactorCodeTask(payload TwoFactorCodePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendTwoFactorCode, data,
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Second),
	), nil
}

// PurgeLoginSessionsPayload configures the purge job.
type PurgeLoginSessionsPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewPurgeLoginSessionsTask constructs a purge task.
func NewPurgeLoginSessionsTask(retentionHours int) (*asynq.Task, error) {
	data, err := json.Marshal(PurgeLoginSessionsPayload{RetentionHours: retentionHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypePurgeLoginSessions, data, asynq.Queue(QueueDefault)), nil
}
