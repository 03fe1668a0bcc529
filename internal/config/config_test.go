package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"PORT", "DATABASE_URL", "CATEGORIES_FILE", "CATEGORIES_RELOAD_SCHEDULE",
	"MAX_UPLOAD_MB", "PARSE_TIMEOUT", "LOG_LEVEL", "LOG_FORMAT", "STATIC_DIR", "OCR_ENABLED",
}

// clearEnv unsets every config variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "", cfg.DatabaseURL)
	assert.Equal(t, "categories.yaml", cfg.CategoriesFile)
	assert.Equal(t, 30*time.Second, cfg.ParseTimeout)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes())
	assert.Equal(t, ":8080", cfg.Addr())
	assert.False(t, cfg.OCR)
}

func TestLoad_Environment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("PARSE_TIMEOUT", "5s")
	t.Setenv("CATEGORIES_RELOAD_SCHEDULE", "@every 5m")
	t.Setenv("OCR_ENABLED", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.ParseTimeout)
	assert.Equal(t, "@every 5m", cfg.ReloadSchedule)
	assert.True(t, cfg.OCR)
}

func TestLoad_DotenvDoesNotOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PORT=7000\nLOG_LEVEL=debug\n"), 0o644))
	t.Setenv("PORT", "9000")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"port not a number", "PORT", "http"},
		{"port out of range", "PORT", "70000"},
		{"zero upload limit", "MAX_UPLOAD_MB", "0"},
		{"bad timeout", "PARSE_TIMEOUT", "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			assert.Error(t, err)
		})
	}
}
