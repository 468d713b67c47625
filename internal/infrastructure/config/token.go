package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

// fileConfig is the persisted part of the configuration. Only the access
// token lives here today; it is kept as a struct so later additions stay
// backward compatible.
type fileConfig struct {
	Token string `yaml:"token"`
}

// EnsureToken resolves the access token for cfg.
//
// Resolution order: explicit RUNOTEBOOK_TOKEN, token persisted in the
// config file, freshly generated token (which is then persisted). The
// resolved token is written back into cfg.Auth.Token and returned.
func EnsureToken(cfg *Config) (string, error) {
	if cfg.Auth.Token != "" {
		return cfg.Auth.Token, nil
	}

	path := cfg.Auth.ConfigFile
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		path = filepath.Join(home, ".runotebook", "config.yaml")
	}

	if data, err := os.ReadFile(path); err == nil {
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return "", fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		if fc.Token != "" {
			cfg.Auth.Token = fc.Token
			return fc.Token, nil
		}
	}

	token, err := generateToken()
	if err != nil {
		return "", err
	}

	if err := persistToken(path, token); err != nil {
		return "", err
	}

	cfg.Auth.Token = token
	return token, nil
}

// generateToken returns a random 32-character hex token.
func generateToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func persistToken(path, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(fileConfig{Token: token})
	if err != nil {
		return fmt.Errorf("failed to encode config file: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}
