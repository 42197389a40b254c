package jobs

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/gatekeeper/internal/shared"
	"github.com/odyssey-erp/gatekeeper/internal/users"
)

// Enqueuer submits tasks. *asynq.Client satisfies it.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher hands one-time codes to the worker for delivery.
type Dispatcher struct {
	client Enqueuer
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(client Enqueuer) *Dispatcher {
	return &Dispatcher{client: client}
}

// SendTwoFactorCode enqueues a code email for user. A queue failure is reported
// as shared.ErrStoreUnavailable.
func (d *Dispatcher) SendTwoFactorCode(ctx context.Context, user users.User, code string) error {
	task, err := NewTwoFactorCodeTask(TwoFactorCodePayload{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.FullName(),
		Code:   code,
	})
	if err != nil {
		return err
	}
	if _, err := d.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("%w: jobs: enqueue 2fa code: %w", shared.ErrStoreUnavailable, err)
	}
	return nil
}
