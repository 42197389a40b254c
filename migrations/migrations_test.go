package migrations

import (
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsAreVersioned(t *testing.T) {
	cfg, err := pgx.ParseConfig("postgres://gatekeeper@127.0.0.1:1/unused")
	require.NoError(t, err)
	db := stdlib.OpenDB(*cfg)

	provider, err := NewProvider(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Close() })

	sources := provider.ListSources()
	require.Len(t, sources, 1)
	assert.Equal(t, int64(1), sources[0].Version)
	assert.Equal(t, goose.TypeSQL, sources[0].Type)
}

func TestSchemaMigrationHasUpAndDown(t *testing.T) {
	data, err := FS.ReadFile("0001_gatekeeper.sql")
	require.NoError(t, err)
	sql := string(data)

	assert.Contains(t, sql, "-- +goose Up\n")
	assert.Contains(t, sql, "-- +goose Down\n")
	for _, table := range []string{"users", "role_menu_permissions", "login_sessions", "audit_logs"} {
		assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS "+table+" (", table)
		assert.Contains(t, sql, "DROP TABLE IF EXISTS "+table+";", table)
	}
}
