package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 80, cfg.Terminal.DefaultCols)
	assert.Equal(t, 24, cfg.Terminal.DefaultRows)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("RUNOTEBOOK_TOKEN", "deadbeef")
	t.Setenv("TERMINAL_COLS", "120")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, "deadbeef", cfg.Auth.Token)
	assert.Equal(t, 120, cfg.Terminal.DefaultCols)
}

func TestEnsureTokenExplicit(t *testing.T) {
	cfg := Default()
	cfg.Auth.Token = "mytoken"

	token, err := EnsureToken(cfg)
	require.NoError(t, err)
	assert.Equal(t, "mytoken", token)
}

func TestEnsureTokenGeneratesAndPersists(t *testing.T) {
	cfg := Default()
	cfg.Auth.ConfigFile = filepath.Join(t.TempDir(), "config.yaml")

	token, err := EnsureToken(cfg)
	require.NoError(t, err)
	assert.Len(t, token, 32)
	assert.Equal(t, token, cfg.Auth.Token)

	// A second resolution against the same file returns the same token.
	cfg2 := Default()
	cfg2.Auth.ConfigFile = cfg.Auth.ConfigFile
	token2, err := EnsureToken(cfg2)
	require.NoError(t, err)
	assert.Equal(t, token, token2)
}

func TestEnsureTokenRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("token: [unclosed"), 0o600))

	cfg := Default()
	cfg.Auth.ConfigFile = path

	_, err := EnsureToken(cfg)
	assert.Error(t, err)
}
