package twofactor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/gatekeeper/internal/platform/db"
	"github.com/odyssey-erp/gatekeeper/internal/shared"
)

// Repository persists login sessions. The find and mark steps of a redemption
// only exist inside WithTx so they always run as one atomic unit.
type Repository interface {
	Insert(ctx context.Context, session LoginSession) (LoginSession, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository is the transactional view used by redemption.
type TxRepository interface {
	// FindLatestUnconsumed returns the newest unconsumed session of userID,
	// locking it. Older unconsumed sessions are superseded and never returned.
	// shared.ErrNotFound when the user has none.
	FindLatestUnconsumed(ctx context.Context, userID string) (LoginSession, error)
	// MarkConsumed flags the session consumed and stores the issued token. It
	// fails with shared.ErrInvalidOrExpiredCode if the session was already consumed.
	MarkConsumed(ctx context.Context, sessionID, token string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const sessionColumns = `id::text, user_id::text, code, code_consumed, issued_token, token_consumed, created_at`

// Insert stores a new session.
func (r *PGRepository) Insert(ctx context.Context, s LoginSession) (LoginSession, error) {
	const query = `INSERT INTO login_sessions (id, user_id, code, code_consumed, issued_token, token_consumed, created_at)
VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6, $7)
RETURNING ` + sessionColumns
	row := r.pool.QueryRow(ctx, query, s.ID, s.UserID, s.Code, s.CodeConsumed, s.IssuedToken, s.TokenConsumed, s.CreatedAt)
	return scanSession(row)
}

// WithTx runs fn in a RepeatableRead transaction. A serialization failure means a
// concurrent redemption won the row and is reported as an invalid code.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{tx: tx})
	})
	return redeemTxError(err)
}

// redeemTxError maps a lost race on the session row to an invalid code.
func redeemTxError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01") {
		return shared.ErrInvalidOrExpiredCode
	}
	return err
}

// PurgeConsumed deletes consumed sessions created before cutoff. Unconsumed
// sessions are kept.
func (r *PGRepository) PurgeConsumed(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM login_sessions WHERE code_consumed = true AND created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("twofactor: purge consumed: %w", err)
	}
	return tag.RowsAffected(), nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) FindLatestUnconsumed(ctx context.Context, userID string) (LoginSession, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return LoginSession{}, shared.ErrNotFound
	}
	const query = `SELECT ` + sessionColumns + `
FROM login_sessions
WHERE user_id = $1::uuid AND code_consumed = false
ORDER BY created_at DESC, id DESC
LIMIT 1
FOR UPDATE`
	session, err := scanSession(t.tx.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LoginSession{}, shared.ErrNotFound
		}
		return LoginSession{}, err
	}
	return session, nil
}

func (t *pgTx) MarkConsumed(ctx context.Context, sessionID, token string) error {
	tag, err := t.tx.Exec(ctx, `UPDATE login_sessions SET code_consumed = true, issued_token = $2 WHERE id = $1::uuid AND code_consumed = false`, sessionID, token)
	if err != nil {
		return fmt.Errorf("twofactor: mark consumed: %w", err)
	}
	return markConsumedResult(tag.RowsAffected())
}

// markConsumedResult rejects an update that found the session already consumed.
func markConsumedResult(rows int64) error {
	if rows == 0 {
		return shared.ErrInvalidOrExpiredCode
	}
	return nil
}

func scanSession(row pgx.Row) (LoginSession, error) {
	var s LoginSession
	err := row.Scan(&s.ID, &s.UserID, &s.Code, &s.CodeConsumed, &s.IssuedToken, &s.TokenConsumed, &s.CreatedAt)
	return s, err
}

var _ Repository = (*PGRepository)(nil)
