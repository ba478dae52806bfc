// Package config loads the client settings.
//
// Sources, highest priority first:
//  1. explicit path (--config);
//  2. PORTAL_CONFIG;
//  3. environment variables only.
//
// Environment variables always overlay values read from a file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// PathEnv names the variable holding the config file path.
const PathEnv = "PORTAL_CONFIG"

type Config struct {
	BaseURL     string        `yaml:"base_url"     env:"PORTAL_API_URL"      env-default:"http://localhost:3000/api"`
	BackendURL  string        `yaml:"backend_url"  env:"PORTAL_BACKEND_URL"`
	RefreshPath string        `yaml:"refresh_path" env:"PORTAL_REFRESH_PATH" env-default:"/auth/refresh"`
	LoginPath   string        `yaml:"login_path"   env:"PORTAL_LOGIN_PATH"   env-default:"/auth/login"`
	PublicPaths []string      `yaml:"public_paths" env:"PORTAL_PUBLIC_PATHS" env-separator:"," env-default:"/auth/login,/auth/register,/auth/refresh,/auth/forgot-password"`
	DBPath      string        `yaml:"db_path"      env:"PORTAL_DB_PATH"`
	Timeout     time.Duration `yaml:"timeout"      env:"PORTAL_TIMEOUT"      env-default:"30s"`

	// Booleans default to false so a value read from a file is never replaced by a default.
	DisableFallback   bool `yaml:"disable_fallback"           env:"PORTAL_DISABLE_FALLBACK"`
	DisableCoalescing bool `yaml:"disable_refresh_coalescing" env:"PORTAL_DISABLE_REFRESH_COALESCING"`
}

// Load reads and validates the configuration.
func Load(path string) (*Config, error) {
	var cfg Config

	if path == "" {
		path = os.Getenv(PathEnv)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the URLs, paths and timeout.
func (c *Config) Validate() error {
	if err := checkURL("base_url", c.BaseURL); err != nil {
		return err
	}
	if c.BackendURL != "" {
		if err := checkURL("backend_url", c.BackendURL); err != nil {
			return err
		}
	}
	if !strings.HasPrefix(c.RefreshPath, "/") {
		return fmt.Errorf("refresh_path must start with '/', got %q", c.RefreshPath)
	}
	if !strings.HasPrefix(c.LoginPath, "/") {
		return fmt.Errorf("login_path must start with '/', got %q", c.LoginPath)
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	return nil
}

func checkURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid %s %q: must be an absolute http(s) URL", key, raw)
	}
	return nil
}

// RefreshURL is the refresh endpoint on the backend, which defaults to the API base URL.
func (c *Config) RefreshURL() string {
	backend := c.BackendURL
	if backend == "" {
		backend = c.BaseURL
	}
	return strings.TrimRight(backend, "/") + "/" + strings.TrimLeft(c.RefreshPath, "/")
}

// DatabasePath is db_path, or ~/.portal/session.db.
func (c *Config) DatabasePath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".portal", "session.db")
	}
	return filepath.Join(home, ".portal", "session.db")
}
