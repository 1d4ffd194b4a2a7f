package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "MAX_UPLOAD_MB", "RESULTS_BACKEND", "RESULTS_TTL", "REDIS_URL", "RESULTS_REDIS_URL", "AXIOM_DATASET", "TRUST_PROXY", "WEB_SESSION_TTL", "WEB_SECURE_COOKIE"} {
		t.Setenv(k, "")
	}
	cfg := FromEnv()
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, int64(100<<20), cfg.Server.MaxUploadBytes())
	assert.Equal(t, "local", cfg.Results.Backend)
	assert.Equal(t, time.Hour, cfg.Results.TTL)
	assert.Equal(t, "dev_pdftools", cfg.Axiom.Dataset)
	assert.Equal(t, 4, cfg.Limits.MaxConcurrentOps)
	assert.False(t, cfg.Limits.TrustProxy)
	assert.Equal(t, 12*time.Hour, cfg.Server.SessionTTL)
	assert.False(t, cfg.Server.SecureCookie)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MAX_UPLOAD_MB", "5")
	t.Setenv("RESULTS_BACKEND", "S3")
	t.Setenv("RESULTS_TTL", "15m")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("RESULTS_REDIS_URL", "")
	t.Setenv("MAX_CONCURRENT_OPS", "not-a-number")
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("TRUST_PROXY", "true")
	t.Setenv("WEB_SESSION_TTL", "30m")
	t.Setenv("WEB_SECURE_COOKIE", "1")

	cfg := FromEnv()
	assert.Equal(t, int64(5<<20), cfg.Server.MaxUploadBytes())
	assert.Equal(t, "s3", cfg.Results.Backend)
	assert.Equal(t, 15*time.Minute, cfg.Results.TTL)
	assert.Equal(t, "redis://cache:6379/1", cfg.Results.RedisURL)
	assert.Equal(t, 4, cfg.Limits.MaxConcurrentOps)
	assert.True(t, cfg.Logging.Pretty)
	assert.True(t, cfg.Limits.TrustProxy)
	assert.Equal(t, 30*time.Minute, cfg.Server.SessionTTL)
	assert.True(t, cfg.Server.SecureCookie)
}

func TestLoadReadsDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DEFAULT_DPI=300\n"), 0o600))
	t.Setenv("DEFAULT_DPI", "")
	require.NoError(t, os.Unsetenv("DEFAULT_DPI"))

	cfg := Load(path)
	assert.Equal(t, 300, cfg.Limits.DefaultDPI)
	require.NoError(t, os.Unsetenv("DEFAULT_DPI"))
}
