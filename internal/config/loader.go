package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix for environment overrides (GOALBOT_...).
// Bare tag names like TELEGRAM_TOKEN are accepted as well.
const EnvPrefix = "GOALBOT"

// ConfigPath returns the default config file location.
func ConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".goalbot", "config.toml"), nil
}

// Load builds the configuration from defaults, the TOML file at path (or the
// default location when path is empty), a .env file in the working directory
// and finally the environment.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		p, err := ConfigPath()
		if err == nil {
			path = p
		}
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			if !errors.Is(err, fs.ErrNotExist) || explicit {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	// A missing .env is the common case.
	_ = godotenv.Load()

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}

	cfg.Store.Path = ExpandHome(cfg.Store.Path)
	cfg.Logging.File = ExpandHome(cfg.Logging.File)
	return cfg, nil
}

// Save writes cfg as TOML to path, creating the parent directory.
func Save(cfg *Config, path string) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

// EnsureDir creates dir and its parents if missing.
func EnsureDir(dir string) error {
	return os.MkdirAll(ExpandHome(dir), 0755)
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return p
}
