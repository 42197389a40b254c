package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/gatekeeper/internal/jobs"
)

// TwoFactorMailJob emails one-time login codes.
type TwoFactorMailJob struct {
	Mailer  Mailer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewTwoFactorMailJob wires dependencies for the mail handler.
func NewTwoFactorMailJob(mailer Mailer, logger *slog.Logger, metrics *jobmetrics.Metrics) *TwoFactorMailJob {
	return &TwoFactorMailJob{Mailer: mailer, Logger: logger, Metrics: metrics}
}

// Handle processes TaskTypeSendTwoFactorCode tasks. Malformed payloads are not
// retried.
func (j *TwoFactorMailJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Mailer == nil {
		return errors.New("twofactor mail: handler not configured")
	}
	var payload TwoFactorCodePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("twofactor mail: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if strings.TrimSpace(payload.Email) == "" || strings.TrimSpace(payload.Code) == "" {
		return fmt.Errorf("twofactor mail: incomplete payload: %w", asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskTypeSendTwoFactorCode)
	defer func() {
		err = tracker.End(err)
	}()

	msg := Message{
		To:      payload.Email,
		Subject: "Your verification code",
		Body:    renderCodeBody(payload),
	}
	if err := j.Mailer.Send(ctx, msg); err != nil {
		j.logger().Warn("send 2fa code", slog.String("user_id", payload.UserID), slog.Any("error", err))
		return err
	}
	j.logger().Info("2fa code sent", slog.String("user_id", payload.UserID))
	return nil
}

func renderCodeBody(p TwoFactorCodePayload) string {
	greeting := "Hello"
	if name := strings.TrimSpace(p.Name); name != "" {
		greeting += " " + name
	}
	return greeting + ",\n\nYour verification code is " + p.Code + ".\nIt can be used once.\n"
}

func (j *TwoFactorMailJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
