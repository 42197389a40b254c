package rbac

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/gatekeeper/internal/shared"
)

// PGStore reads permission records from role_menu_permissions.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a PostgreSQL backed PermissionStore.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const lookupPermissionSQL = `SELECT role_id, menu_id, can_list, can_create, can_edit, can_delete, can_download
FROM role_menu_permissions
WHERE role_id = $1 AND menu_id = $2`

// Lookup fetches the record for the pair.
func (s *PGStore) Lookup(ctx context.Context, roleID, menuID string) (PermissionRecord, error) {
	var rec PermissionRecord
	err := s.pool.QueryRow(ctx, lookupPermissionSQL, roleID, menuID).Scan(
		&rec.RoleID,
		&rec.MenuID,
		&rec.CanList,
		&rec.CanCreate,
		&rec.CanEdit,
		&rec.CanDelete,
		&rec.CanDownload,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PermissionRecord{}, shared.ErrNotFound
		}
		return PermissionRecord{}, err
	}
	return rec, nil
}

var _ PermissionStore = (*PGStore)(nil)
