package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/odyssey-erp/gatekeeper/internal/shared"
	"github.com/odyssey-erp/gatekeeper/internal/token"
)

// Verifier decodes a bearer token into its claims.
type Verifier interface {
	Verify(raw string) (token.Claims, error)
}

// Authorizer resolves a decision for a role on a menu action.
type Authorizer interface {
	Authorize(ctx context.Context, roleID, menuID string, action Action) (Decision, error)
}

// TokenPolicy is an optional hook run on verified claims before authorization,
// e.g. to enforce expiry or revocation. A non-nil error rejects the token.
type TokenPolicy interface {
	Check(ctx context.Context, claims token.Claims) error
}

// DecisionRecorder receives one observation per authorization attempt.
type DecisionRecorder interface {
	RecordDecision(outcome, reason string)
}

// Authenticator is the enforcement point every protected operation passes
// through: token, then role, then decision.
type Authenticator struct {
	verifier Verifier
	engine   Authorizer
	policy   TokenPolicy
	recorder DecisionRecorder
	logger   *slog.Logger
}

// AuthenticatorOption customises an Authenticator.
type AuthenticatorOption func(*Authenticator)

// WithTokenPolicy installs a claims check between verification and authorization.
func WithTokenPolicy(policy TokenPolicy) AuthenticatorOption {
	return func(a *Authenticator) { a.policy = policy }
}

// WithDecisionRecorder reports every outcome to recorder.
func WithDecisionRecorder(recorder DecisionRecorder) AuthenticatorOption {
	return func(a *Authenticator) { a.recorder = recorder }
}

// NewAuthenticator constructs an Authenticator.
func NewAuthenticator(verifier Verifier, engine Authorizer, logger *slog.Logger, opts ...AuthenticatorOption) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Authenticator{verifier: verifier, engine: engine, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authenticate resolves rawToken to a Principal allowed to perform action on
// menuID. Failures are shared.ErrUnauthenticated, shared.ErrForbidden or
// shared.ErrStoreUnavailable; the deny reason is never part of the error.
func (a *Authenticator) Authenticate(ctx context.Context, rawToken, menuID string, action Action) (shared.Principal, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		a.record("unauthenticated", "no_token")
		return shared.Principal{}, shared.ErrUnauthenticated
	}
	claims, err := a.verifier.Verify(rawToken)
	if err != nil {
		a.logger.Debug("rbac token rejected", slog.Any("error", err))
		a.record("unauthenticated", "invalid_token")
		return shared.Principal{}, shared.ErrUnauthenticated
	}
	if a.policy != nil {
		if err := a.policy.Check(ctx, claims); err != nil {
			a.logger.Debug("rbac token policy rejected", slog.Any("error", err))
			a.record("unauthenticated", "policy")
			return shared.Principal{}, shared.ErrUnauthenticated
		}
	}

	decision, err := a.engine.Authorize(ctx, claims.Role, menuID, action)
	if err != nil {
		a.logger.Error("rbac authorize", slog.String("role", claims.Role), slog.String("menu", menuID), slog.Any("error", err))
		a.record("error", "store_unavailable")
		if errors.Is(err, shared.ErrStoreUnavailable) {
			return shared.Principal{}, err
		}
		return shared.Principal{}, fmt.Errorf("%w: %w", shared.ErrStoreUnavailable, err)
	}
	a.record(decision.Outcome(), decision.Reason.String())
	if !decision.Allowed {
		if decision.Reason == ReasonUnknownAction {
			a.logger.Error("rbac unknown action declared", slog.String("menu", menuID), slog.String("action", string(action)))
		}
		return shared.Principal{}, shared.ErrForbidden
	}
	return shared.Principal{
		RoleID: claims.Role,
		UserID: claims.UserID(),
		Name:   claims.Name,
		Email:  claims.Email,
	}, nil
}

func (a *Authenticator) record(outcome, reason string) {
	if a.recorder != nil {
		a.recorder.RecordDecision(outcome, reason)
	}
}
