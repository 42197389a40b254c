package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/gatekeeper/internal/jobs"
)

// DefaultSessionRetentionHours is used when a purge task carries no retention.
const DefaultSessionRetentionHours = 24 * 7

// SessionPurger removes consumed login sessions older than a cutoff.
type SessionPurger interface {
	PurgeConsumed(ctx context.Context, cutoff time.Time) (int64, error)
}

// SessionPurgeJob keeps the login session table bounded.
type SessionPurgeJob struct {
	Purger  SessionPurger
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewSessionPurgeJob wires dependencies for the purge handler.
func NewSessionPurgeJob(purger SessionPurger, logger *slog.Logger, metrics *jobmetrics.Metrics) *SessionPurgeJob {
	return &SessionPurgeJob{
		Purger:  purger,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskTypePurgeLoginSessions tasks.
func (j *SessionPurgeJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Purger == nil {
		return errors.New("session purge: handler not configured")
	}
	var payload PurgeLoginSessionsPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("session purge: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	if payload.RetentionHours <= 0 {
		payload.RetentionHours = DefaultSessionRetentionHours
	}

	tracker := j.Metrics.Track(TaskTypePurgeLoginSessions)
	defer func() {
		err = tracker.End(err)
	}()

	cutoff := j.clock().Add(-time.Duration(payload.RetentionHours) * time.Hour)
	removed, err := j.Purger.PurgeConsumed(ctx, cutoff)
	if err != nil {
		return err
	}
	j.Metrics.AddPurged(removed)
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("login sessions purged", slog.Int64("removed", removed), slog.Time("cutoff", cutoff))
	return nil
}
