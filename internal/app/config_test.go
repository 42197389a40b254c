package app

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/gatekeeper/internal/shared"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "config-secret")
	t.Setenv("MENU_USERS_ID", "menu-users")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 5, cfg.TwoFACodeLength)
	assert.Equal(t, 30*time.Second, cfg.PermissionCacheTTL)
	assert.Equal(t, 10, cfg.VerifyRateLimit)
	assert.Equal(t, shared.MenuCatalog{Users: "menu-users"}, cfg.MenuCatalog())
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRequiresSecurityValues(t *testing.T) {
	t.Run("jwt secret", func(t *testing.T) {
		t.Setenv("MENU_USERS_ID", "menu-users")
		t.Setenv("JWT_SECRET", "  ")
		_, err := LoadConfig()
		assert.ErrorIs(t, err, shared.ErrConfiguration)
	})
	t.Run("users menu", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "config-secret")
		t.Setenv("MENU_USERS_ID", " ")
		_, err := LoadConfig()
		assert.ErrorIs(t, err, shared.ErrConfiguration)
	})
}

func TestLoadConfigRejectsCodeLengthOutOfRange(t *testing.T) {
	setRequiredEnv(t)
	for _, length := range []string{"3", "11"} {
		t.Setenv("TWOFA_CODE_LENGTH", length)
		_, err := LoadConfig()
		assert.ErrorIs(t, err, shared.ErrConfiguration, length)
	}
	t.Setenv("TWOFA_CODE_LENGTH", "abc")
	_, err := LoadConfig()
	assert.ErrorIs(t, err, shared.ErrConfiguration)
}

func TestIsProductionNilSafe(t *testing.T) {
	var cfg *Config
	assert.False(t, cfg.IsProduction())
	assert.True(t, (&Config{AppEnv: "production"}).IsProduction())
}

func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadWorkerConfigWithoutAPISecrets(t *testing.T) {
	unsetEnv(t, "JWT_SECRET", "MENU_USERS_ID")

	_, err := LoadConfig()
	require.ErrorIs(t, err, shared.ErrConfiguration)

	cfg, err := LoadWorkerConfig()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.SMTPHost)
	assert.Equal(t, 1025, cfg.SMTPPort)
	assert.Equal(t, 10, cfg.Concurrency)
	assert.Equal(t, ":9091", cfg.MetricsAddr)
	assert.Equal(t, "0 3 * * *", cfg.SessionPurgeCron)
	assert.Equal(t, 168, cfg.SessionRetentionHours)
}

func TestLoadWorkerConfigRejectsInvalidValues(t *testing.T) {
	for key, value := range map[string]string{
		"SMTP_PORT":               "0",
		"WORKER_CONCURRENCY":      "-1",
		"SESSION_RETENTION_HOURS": "0",
		"SMTP_HOST":               " ",
	} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := LoadWorkerConfig()
			assert.ErrorIs(t, err, shared.ErrConfiguration)
		})
	}
}
