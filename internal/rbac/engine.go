package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/odyssey-erp/gatekeeper/internal/shared"
)

// PermissionStore looks up the permission record for a (role, menu) pair. It
// returns shared.ErrNotFound when no record exists.
type PermissionStore interface {
	Lookup(ctx context.Context, roleID, menuID string) (PermissionRecord, error)
}

// Engine resolves allow/deny decisions against a PermissionStore.
type Engine struct {
	store PermissionStore
}

// NewEngine constructs an Engine.
func NewEngine(store PermissionStore) *Engine {
	return &Engine{store: store}
}

// Authorize decides whether roleID may perform action on menuID. The returned
// error is non-nil only when the store failed; the decision is then a deny.
func (e *Engine) Authorize(ctx context.Context, roleID, menuID string, action Action) (Decision, error) {
	if _, ok := actionFlags[action]; !ok {
		return Deny(ReasonUnknownAction), nil
	}
	if strings.TrimSpace(roleID) == "" || strings.TrimSpace(menuID) == "" {
		return Deny(ReasonNoGrant), nil
	}
	record, err := e.store.Lookup(ctx, roleID, menuID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Deny(ReasonNoGrant), nil
		}
		return Deny(ReasonNoGrant), fmt.Errorf("%w: rbac: lookup permission: %w", shared.ErrStoreUnavailable, err)
	}
	if record.Grants(action) {
		return Allow(), nil
	}
	return Deny(ReasonNotPermitted), nil
}
