package twofactor

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/gatekeeper/internal/shared"
	"github.com/odyssey-erp/gatekeeper/internal/token"
	"github.com/odyssey-erp/gatekeeper/internal/users"
)

// ErrTokenIssue indicates the redeemed user could not be given a token, e.g. a
// user without role.
var ErrTokenIssue = errors.New("twofactor: token issuance failed")

// UserDirectory resolves the user whose role the issued token carries.
type UserDirectory interface {
	FindByID(ctx context.Context, id string) (users.User, error)
}

// TokenIssuer signs bearer tokens.
type TokenIssuer interface {
	Issue(claims token.Claims) (string, error)
}

// AuditRecorder persists audit trail entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// RedemptionRecorder receives one observation per redemption attempt.
type RedemptionRecorder interface {
	RecordRedemption(result string)
}

// ServiceConfig tunes the Service.
type ServiceConfig struct {
	CodeLength int
	Recorder   RedemptionRecorder
}

// Service creates and redeems login sessions.
type Service struct {
	repo       Repository
	directory  UserDirectory
	issuer     TokenIssuer
	audit      AuditRecorder
	recorder   RedemptionRecorder
	logger     *slog.Logger
	codeLength int
	generate   func(int) (string, error)
	now        func() time.Time
}

// NewService constructs a Service. audit may be nil.
func NewService(repo Repository, directory UserDirectory, issuer TokenIssuer, audit AuditRecorder, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	length := cfg.CodeLength
	if length == 0 {
		length = DefaultCodeLength
	}
	return &Service{
		repo:       repo,
		directory:  directory,
		issuer:     issuer,
		audit:      audit,
		recorder:   cfg.Recorder,
		logger:     logger,
		codeLength: length,
		generate:   GenerateCode,
		now:        time.Now,
	}
}

// Create starts a handshake for userID and returns the session with its
// plaintext code. Delivering the code is the caller's job.
func (s *Service) Create(ctx context.Context, userID string) (LoginSession, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return LoginSession{}, errors.New("twofactor: user id required")
	}
	code, err := s.generate(s.codeLength)
	if err != nil {
		return LoginSession{}, err
	}
	session, err := s.repo.Insert(ctx, LoginSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		Code:      code,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return LoginSession{}, fmt.Errorf("%w: twofactor: insert session: %w", shared.ErrStoreUnavailable, err)
	}
	return session, nil
}

// Redeem validates code against the newest unconsumed session of userID and, on
// success, issues a token and marks that session consumed in the same
// transaction. Codes of older sessions are superseded. Any mismatch is
// shared.ErrInvalidOrExpiredCode without saying which part failed.
func (s *Service) Redeem(ctx context.Context, userID, code string) (Redemption, error) {
	userID = strings.TrimSpace(userID)
	code = strings.TrimSpace(code)
	if userID == "" || !isNumeric(code) {
		s.record("invalid")
		return Redemption{}, shared.ErrInvalidOrExpiredCode
	}

	var result Redemption
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		session, err := tx.FindLatestUnconsumed(ctx, userID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return shared.ErrInvalidOrExpiredCode
			}
			return fmt.Errorf("%w: twofactor: find session: %w", shared.ErrStoreUnavailable, err)
		}
		if subtle.ConstantTimeCompare([]byte(session.Code), []byte(code)) != 1 {
			return shared.ErrInvalidOrExpiredCode
		}
		user, err := s.directory.FindByID(ctx, session.UserID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return shared.ErrInvalidOrExpiredCode
			}
			return fmt.Errorf("%w: twofactor: find user: %w", shared.ErrStoreUnavailable, err)
		}
		if !user.IsActive {
			return shared.ErrInvalidOrExpiredCode
		}
		signed, err := s.issuer.Issue(token.Claims{
			Role:             user.RoleID,
			Name:             user.FullName(),
			Email:            user.Email,
			RegisteredClaims: jwt.RegisteredClaims{Subject: user.ID},
		})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrTokenIssue, err)
		}
		if err := tx.MarkConsumed(ctx, session.ID, signed); err != nil {
			if errors.Is(err, shared.ErrInvalidOrExpiredCode) {
				return err
			}
			return fmt.Errorf("%w: %w", shared.ErrStoreUnavailable, err)
		}
		session.CodeConsumed = true
		session.IssuedToken = signed
		result = Redemption{Session: session, User: user, Token: signed}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrInvalidOrExpiredCode):
			s.record("invalid")
			return Redemption{}, shared.ErrInvalidOrExpiredCode
		case errors.Is(err, ErrTokenIssue), errors.Is(err, shared.ErrStoreUnavailable):
			s.record("error")
			return Redemption{}, err
		default:
			s.record("error")
			return Redemption{}, fmt.Errorf("%w: twofactor: redeem: %w", shared.ErrStoreUnavailable, err)
		}
	}

	s.record("success")
	s.recordAudit(ctx, result)
	return result, nil
}

// recordAudit attaches the issued token to the audit trail. Failures are logged
// and never undo the redemption.
func (s *Service) recordAudit(ctx context.Context, r Redemption) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  r.User.ID,
		Action:   "auth.2fa.redeemed",
		Entity:   "login_session",
		EntityID: r.Session.ID,
		Meta: map[string]any{
			"role_id":        r.User.RoleID,
			"token_attached": r.Session.IssuedToken != "",
		},
		At: s.now().UTC(),
	})
	if err != nil {
		s.logger.Warn("twofactor audit record", slog.String("session", r.Session.ID), slog.Any("error", err))
	}
}

func (s *Service) record(result string) {
	if s.recorder != nil {
		s.recorder.RecordRedemption(result)
	}
}
