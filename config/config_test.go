package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CrowderSoup/task-tracker/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "3001", cfg.Port)
	assert.Equal(t, "./tasks.db", cfg.DBPath)
	assert.Equal(t, 168*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 20, cfg.AuthRateLimit)
	assert.False(t, cfg.RequireEmailConfirmation)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins())
	assert.NotEmpty(t, cfg.Secret())
}

func TestLoadEnvFileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	env := "PORT=4000\nLOG_LEVEL=debug\nSESSION_TTL=2h\nREQUIRE_EMAIL_CONFIRMATION=true\nCORS_ORIGINS=http://a.test, http://b.test\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o600))

	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("AUTH_RATE_LIMIT", "5")

	cfg, err := config.Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "4000", cfg.Port)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.True(t, cfg.RequireEmailConfirmation)
	assert.Equal(t, 5, cfg.AuthRateLimit)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins())
}

func TestLoadRequiresSecretInProduction(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := config.Load(t.TempDir())
	assert.EqualError(t, err, "JWT_SECRET is required outside development")

	t.Setenv("JWT_SECRET", "s3cret")
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, []byte("s3cret"), cfg.Secret())
}

func TestValidate(t *testing.T) {
	cfg := config.Config{Environment: config.EnvDevelopment, SessionTTL: 0, AuthRateLimit: 1}
	assert.Error(t, cfg.Validate())

	cfg.SessionTTL = time.Hour
	assert.NoError(t, cfg.Validate())

	cfg.AuthRateLimit = 0
	assert.Error(t, cfg.Validate())
}
