package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Config is the persisted graphctl configuration.
type Config struct {
	TenantID string   `toml:"tenant_id"`
	ClientID string   `toml:"client_id"`
	Scopes   []string `toml:"scopes"`
	Endpoint string   `toml:"endpoint,omitempty"`
}

// defaultScopes requests delegated Graph access plus a refresh token.
var defaultScopes = []string{"https://graph.microsoft.com/.default", "offline_access"}

// configPath returns the location of config.toml, creating the parent
// directory on first use.
func configPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	dir = filepath.Join(dir, "graphctl")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return filepath.Join(dir, "config.toml"), nil
}

// LoadConfig reads config.toml, applying defaults for absent fields. A
// missing file yields the defaults.
func LoadConfig() (*Config, error) {
	cfg := &Config{TenantID: "common", Scopes: defaultScopes}

	path, err := configPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = defaultScopes
	}
	return cfg, nil
}

// SaveConfig writes config.toml.
func SaveConfig(cfg *Config) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
