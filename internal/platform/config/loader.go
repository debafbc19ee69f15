package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFile is read when present and no explicit path is given.
	DefaultConfigFile = ".config.yaml"
	configFileEnv     = "RELAY_CONFIG_FILE"
)

// Loader assembles a Config from defaults, an optional YAML file and the
// process environment, in that order of increasing precedence.
type Loader struct {
	useDotEnv bool
	path      string
}

// NewLoader creates a loader that reads .env and the default config file.
func NewLoader() *Loader {
	return &Loader{useDotEnv: true}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithFile sets an explicit YAML path. A missing explicit file is an error.
func (l *Loader) WithFile(path string) *Loader {
	l.path = path
	return l
}

// Result captures the loaded configuration and where it came from.
type Result struct {
	Config *Config
	Path   string
}

// Load builds the configuration. Missing prediction secrets are not an error
// here; the relay reports them per request.
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	cfg := DefaultConfig()

	path, explicit := l.resolvePath()
	source := "defaults"
	if path != "" {
		loaded, err := readFile(cfg, path)
		if err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		} else if loaded {
			source = path
		}
	}

	if err := overlayEnv(cfg); err != nil {
		return nil, err
	}

	if err := l.validate(cfg); err != nil {
		return nil, err
	}

	return &Result{
		Config: cfg,
		Path:   source,
	}, nil
}

func (l *Loader) resolvePath() (string, bool) {
	if l.path != "" {
		return l.path, true
	}
	if p := strings.TrimSpace(os.Getenv(configFileEnv)); p != "" {
		return p, true
	}
	return DefaultConfigFile, false
}

func readFile(cfg *Config, path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

// overlayEnv applies environment variables section by section so that each
// field is keyed by its envconfig tag alone.
func overlayEnv(cfg *Config) error {
	sections := []any{&cfg.Server, &cfg.Log, &cfg.Web, &cfg.Prediction, &cfg.Events}
	for _, section := range sections {
		if err := envconfig.Process("", section); err != nil {
			return fmt.Errorf("read environment: %w", err)
		}
	}
	return nil
}

func (l *Loader) validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}
	if cfg.Server.CustomHandlerPort < 0 || cfg.Server.CustomHandlerPort > 65535 {
		return fmt.Errorf("invalid custom handler port %d", cfg.Server.CustomHandlerPort)
	}
	if cfg.Prediction.Timeout <= 0 {
		return fmt.Errorf("prediction timeout must be positive, got %s", cfg.Prediction.Timeout)
	}
	if cfg.Prediction.MaxBodyBytes < 0 {
		return fmt.Errorf("prediction max body bytes must not be negative, got %d", cfg.Prediction.MaxBodyBytes)
	}
	return nil
}
