package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromDotenvAndDefaults(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("DB_USER=board\nDB_NAME=taskboard\nJWT_SECRET=s3cret\n"), 0o600))
	// godotenv.Load does not override real env vars; keep the test hermetic
	for _, k := range []string{"DB_USER", "DB_NAME", "JWT_SECRET", "APP_PORT", "TOKEN_TTL", "RATE_LIMIT_TTL"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	t.Setenv("CORS_ORIGIN", "http://a.test,http://b.test")

	cfg, err := Load(envFile)
	require.NoError(t, err)

	assert.Equal(t, "board", cfg.DB.User)
	assert.Equal(t, "taskboard", cfg.DB.Name)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigin)
	assert.True(t, cfg.IsDevelopment())
	assert.True(t, cfg.Cache.Caches("get"))
	assert.False(t, cfg.Cache.Caches("POST"))
	assert.GreaterOrEqual(t, cfg.RateLimit.TTL, 5*cfg.RateLimit.RefillInterval)
}

func TestLoadMissingRequired(t *testing.T) {
	for _, k := range []string{"DB_USER", "DB_NAME", "JWT_SECRET"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestRedisAddress(t *testing.T) {
	assert.Equal(t, "cache:6380", Redis{Host: "cache", Port: "6380", Addr: "ignored:1"}.Address())
	assert.Equal(t, "localhost:6379", Redis{Addr: "localhost:6379"}.Address())
}
