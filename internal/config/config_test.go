package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masquerade-labs/masquerade/internal/apperr"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeTempConfig(t, `
log: debug
database:
  redis: localhost:6379
  prefix: testpfx
  cache:
    duration: 30
api:
  jwt_secret: s3cret
  pbkdf2_iterations: 100000
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log)
	assert.Equal(t, "localhost:6379", cfg.Database.Redis)
	assert.Equal(t, "testpfx", cfg.Database.Prefix)
	assert.Equal(t, 30, cfg.Database.Cache.DurationSeconds)
	assert.Equal(t, "s3cret", cfg.API.JWTSecret)
	assert.Equal(t, 100000, cfg.API.PBKDF2Iterations)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeTempConfig(t, `
database:
  redis: localhost:6379
api:
  jwt_secret: file-secret
`)

	t.Setenv("MASQUERADE_API_JWT_SECRET", "env-secret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-secret", cfg.API.JWTSecret)
}

func TestMissingFileFallsBackToEnvAndDefaults(t *testing.T) {
	t.Setenv("MASQUERADE_DATABASE_REDIS", "localhost:6379")
	t.Setenv("MASQUERADE_API_JWT_SECRET", "env-secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultPrefix, cfg.Database.Prefix)
	assert.Equal(t, "localhost:6379", cfg.Database.Redis)
}

func TestValidateRejectsMissingRedis(t *testing.T) {
	t.Setenv("MASQUERADE_API_JWT_SECRET", "env-secret")
	_, err := Load("")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.ConfigFailure))
}

func TestValidateRejectsMissingJWTSecret(t *testing.T) {
	t.Setenv("MASQUERADE_DATABASE_REDIS", "localhost:6379")
	_, err := Load("")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.ConfigFailure))
}
