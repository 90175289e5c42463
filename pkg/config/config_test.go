package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"ENVIRONMENT", "PORT", "USE_LOCAL_DB", "CAPTURE_RATE_LIMIT", "PALETTE_DEBOUNCE_MS", "ALLOWED_ORIGINS", "REDIS_URL"} {
		t.Setenv(k, "")
	}
	t.Chdir(t.TempDir())

	cfg := LoadConfig()
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "3000", cfg.Port)
	assert.True(t, cfg.UseLocalDB)
	assert.Equal(t, 30, cfg.CaptureRateLimit)
	assert.Equal(t, 300*time.Millisecond, cfg.PaletteDebounce)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.False(t, cfg.RateLimitEnabled())
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigParsesOrigins(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "https://tilespace.app, chrome-extension://abc ,")
	cfg := LoadConfig()
	assert.Equal(t, []string{"https://tilespace.app", "chrome-extension://abc"}, cfg.AllowedOrigins)
}

func TestValidateRejectsDefaultSecretInProduction(t *testing.T) {
	cfg := &Config{Environment: "production", Port: "3000", JWTSecret: defaultJWTSecret, PostgresDSN: "postgres://x"}
	assert.Error(t, cfg.Validate())

	cfg.JWTSecret = "real-secret"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRequiresBackend(t *testing.T) {
	cfg := &Config{Environment: "development", Port: "3000", JWTSecret: "s"}
	assert.Error(t, cfg.Validate())

	cfg.SupabaseURL = "https://x.supabase.co"
	cfg.SupabaseKey = "key"
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvFileDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env.local")
	require.NoError(t, os.WriteFile(path, []byte("# comment\nTS_A=\"from-file\"\nTS_B='b'\nbroken\n"), 0o600))

	t.Setenv("TS_A", "from-env")
	t.Setenv("TS_B", "")
	loadEnvFile(path)

	assert.Equal(t, "from-env", os.Getenv("TS_A"))
	assert.Equal(t, "b", os.Getenv("TS_B"))
}
