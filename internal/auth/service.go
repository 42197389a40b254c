package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"

	"github.com/odyssey-erp/gatekeeper/internal/shared"
	"github.com/odyssey-erp/gatekeeper/internal/twofactor"
	"github.com/odyssey-erp/gatekeeper/internal/users"
)

// UserFinder looks users up by login email.
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (users.User, error)
}

// SessionManager is the two-factor handshake.
type SessionManager interface {
	Create(ctx context.Context, userID string) (twofactor.LoginSession, error)
	Redeem(ctx context.Context, userID, code string) (twofactor.Redemption, error)
}

// NotificationDispatcher hands a one-time code to an out-of-band channel.
type NotificationDispatcher interface {
	SendTwoFactorCode(ctx context.Context, user users.User, code string) error
}

// Service wraps authentication business rules.
type Service struct {
	users    UserFinder
	sessions SessionManager
	notifier NotificationDispatcher
	logger   *slog.Logger
}

// NewService constructs a new Service.
func NewService(finder UserFinder, sessions SessionManager, notifier NotificationDispatcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: finder, sessions: sessions, notifier: notifier, logger: logger}
}

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// equaliseTiming burns a bcrypt comparison so unknown emails cost the same as
// wrong passwords.
func equaliseTiming(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("gatekeeper-dummy-password"), bcrypt.DefaultCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}

// NormalizeEmail trims and case-folds an email address.
func NormalizeEmail(email string) string {
	return cases.Fold().String(strings.TrimSpace(email))
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (users.User, error) {
	user, err := s.users.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			equaliseTiming(password)
			return users.User{}, shared.ErrInvalidCredentials
		}
		return users.User{}, fmt.Errorf("%w: auth: find user: %w", shared.ErrStoreUnavailable, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return users.User{}, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return users.User{}, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Identify checks credentials, opens a two-factor session and dispatches its
// code. The code never leaves this method other than through the dispatcher.
func (s *Service) Identify(ctx context.Context, email, password string) (users.User, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return users.User{}, err
	}
	session, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return users.User{}, err
	}
	if err := s.notifier.SendTwoFactorCode(ctx, user, session.Code); err != nil {
		s.logger.Error("dispatch 2fa code", slog.String("user", user.ID), slog.Any("error", err))
		return users.User{}, fmt.Errorf("%w: auth: dispatch code: %w", shared.ErrStoreUnavailable, err)
	}
	s.logger.Info("2fa session created", slog.String("user", user.ID), slog.String("session", session.ID))
	return user, nil
}

// VerifyCode redeems a one-time code for a bearer token.
func (s *Service) VerifyCode(ctx context.Context, userID, code string) (twofactor.Redemption, error) {
	return s.sessions.Redeem(ctx, userID, code)
}
