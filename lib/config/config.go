// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the settings file when --config is absent.
const EnvironmentVariable = "ONBOARD_CONFIG"

// Environment selects which override section applies.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// Config is the complete settings tree.
type Config struct {
	Environment Environment `yaml:"environment"`

	Paths     PathsConfig     `yaml:"paths"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Store     StoreConfig     `yaml:"store"`
	Logging   LoggingConfig   `yaml:"logging"`

	Development *ConfigOverrides `yaml:"development,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides holds per-environment replacements. Zero-valued
// fields leave the base value alone, so booleans cannot be overridden.
type ConfigOverrides struct {
	Bridge    *BridgeConfig    `yaml:"bridge,omitempty"`
	Reconcile *ReconcileConfig `yaml:"reconcile,omitempty"`
	Logging   *LoggingConfig   `yaml:"logging,omitempty"`
}

// PathsConfig locates on-disk state.
type PathsConfig struct {
	// DataDir is the application data directory. The SecureStore
	// lives at DataDir/config and the bridge keeps its keys beside
	// it.
	DataDir string `yaml:"data_dir"`

	// BackupDir receives SecureStore snapshots taken before a wipe.
	BackupDir string `yaml:"backup_dir"`
}

// BridgeConfig describes how to reach the bridge daemon.
type BridgeConfig struct {
	SocketPath string `yaml:"socket_path"`

	// CallTimeout bounds every bridge call except initialize.
	CallTimeout time.Duration `yaml:"call_timeout"`

	// InitTimeout bounds initialize, which may derive keys.
	InitTimeout time.Duration `yaml:"init_timeout"`
}

// ReconcileConfig paces the governance reconciler.
type ReconcileConfig struct {
	// PollInterval is the gap between automatic passes while the
	// governance sets have not converged.
	PollInterval time.Duration `yaml:"poll_interval"`

	// RetryAttempts is how many times a bridge call failing with a
	// retryable error is repeated. 0 disables retries.
	RetryAttempts int `yaml:"retry_attempts"`

	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`

	// AutoAdvance lets the wizard leave the reconciliation screen on
	// its own once every configured governance is recognized.
	AutoAdvance bool `yaml:"auto_advance"`
}

// StoreConfig controls SecureStore maintenance.
type StoreConfig struct {
	SnapshotOnWipe bool `yaml:"snapshot_on_wipe"`

	// SnapshotCompression is one of none, lz4 or zstd.
	SnapshotCompression string `yaml:"snapshot_compression"`
}

// LoggingConfig sets the slog level: debug, info, warn or error.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

var (
	compressionNames = []string{"none", "lz4", "zstd"}
	levelNames       = []string{"debug", "info", "warn", "error"}
)

// Default returns the built-in settings with paths already expanded.
func Default() *Config {
	cfg := defaults()
	cfg.expandVariables()
	return cfg
}

func defaults() *Config {
	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			DataDir:   filepath.Join(dataHome(), "onboard"),
			BackupDir: "${ONBOARD_DATA_DIR}/backups",
		},
		Bridge: BridgeConfig{
			SocketPath:  "${ONBOARD_DATA_DIR}/bridge.sock",
			CallTimeout: 30 * time.Second,
			InitTimeout: 2 * time.Minute,
		},
		Reconcile: ReconcileConfig{
			PollInterval:   5 * time.Second,
			RetryAttempts:  3,
			InitialBackoff: time.Second,
			MaxBackoff:     8 * time.Second,
			AutoAdvance:    true,
		},
		Store: StoreConfig{
			SnapshotOnWipe:      true,
			SnapshotCompression: "zstd",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// dataHome follows the XDG base directory convention.
func dataHome() string {
	if directory := os.Getenv("XDG_DATA_HOME"); directory != "" {
		return directory
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share")
}

// Load resolves the settings file: path if non-empty, otherwise
// $ONBOARD_CONFIG, otherwise the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvironmentVariable)
	}
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile reads one settings file over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if bridge := overrides.Bridge; bridge != nil {
		if bridge.SocketPath != "" {
			c.Bridge.SocketPath = bridge.SocketPath
		}
		if bridge.CallTimeout != 0 {
			c.Bridge.CallTimeout = bridge.CallTimeout
		}
		if bridge.InitTimeout != 0 {
			c.Bridge.InitTimeout = bridge.InitTimeout
		}
	}

	if reconcile := overrides.Reconcile; reconcile != nil {
		if reconcile.PollInterval != 0 {
			c.Reconcile.PollInterval = reconcile.PollInterval
		}
		if reconcile.RetryAttempts != 0 {
			c.Reconcile.RetryAttempts = reconcile.RetryAttempts
		}
		if reconcile.InitialBackoff != 0 {
			c.Reconcile.InitialBackoff = reconcile.InitialBackoff
		}
		if reconcile.MaxBackoff != 0 {
			c.Reconcile.MaxBackoff = reconcile.MaxBackoff
		}
	}

	if overrides.Logging != nil && overrides.Logging.Level != "" {
		c.Logging.Level = overrides.Logging.Level
	}
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Paths.DataDir = expandVars(c.Paths.DataDir, vars)
	vars["ONBOARD_DATA_DIR"] = c.Paths.DataDir

	c.Paths.BackupDir = expandVars(c.Paths.BackupDir, vars)
	c.Bridge.SocketPath = expandVars(c.Bridge.SocketPath, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars replaces ${VAR} and ${VAR:-default}. vars take precedence
// over the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, fallback := parts[1], parts[2]

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return fallback
	})
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %q", c.Environment))
	}
	if c.Paths.DataDir == "" {
		errs = append(errs, errors.New("paths.data_dir is required"))
	} else if !filepath.IsAbs(c.Paths.DataDir) {
		errs = append(errs, fmt.Errorf("paths.data_dir must be absolute, got %q", c.Paths.DataDir))
	}
	if c.Bridge.SocketPath == "" {
		errs = append(errs, errors.New("bridge.socket_path is required"))
	}
	if c.Bridge.CallTimeout <= 0 {
		errs = append(errs, errors.New("bridge.call_timeout must be positive"))
	}
	if c.Bridge.InitTimeout <= 0 {
		errs = append(errs, errors.New("bridge.init_timeout must be positive"))
	}
	if c.Reconcile.PollInterval <= 0 {
		errs = append(errs, errors.New("reconcile.poll_interval must be positive"))
	}
	if c.Reconcile.RetryAttempts < 0 {
		errs = append(errs, errors.New("reconcile.retry_attempts must not be negative"))
	}
	if c.Reconcile.InitialBackoff <= 0 {
		errs = append(errs, errors.New("reconcile.initial_backoff must be positive"))
	}
	if c.Reconcile.MaxBackoff < c.Reconcile.InitialBackoff {
		errs = append(errs, errors.New("reconcile.max_backoff must not be below initial_backoff"))
	}
	if !slices.Contains(compressionNames, c.Store.SnapshotCompression) {
		errs = append(errs, fmt.Errorf("store.snapshot_compression must be one of: %v", compressionNames))
	}
	if !slices.Contains(levelNames, c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level must be one of: %v", levelNames))
	}

	return errors.Join(errs...)
}

// LogLevel converts Logging.Level. Unknown names map to info.
func (c *Config) LogLevel() slog.Level {
	switch c.Logging.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// EnsurePaths creates the data and backup directories, owner-only.
func (c *Config) EnsurePaths() error {
	for _, path := range []string{c.Paths.DataDir, c.Paths.BackupDir} {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o700); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}
