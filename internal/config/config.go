package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	pxerrors "git.home.luguber.info/inful/pxbuild/internal/errors"
	"git.home.luguber.info/inful/pxbuild/internal/retry"
)

// DefaultPath is the configuration file looked up when --config is not given.
const DefaultPath = "pxbuild.yaml"

// Config represents the application configuration
type Config struct {
	Project ProjectConfig `yaml:"project"`
	Build   BuildConfig   `yaml:"build"`
	Logging LoggingConfig `yaml:"logging"`
	Preview PreviewConfig `yaml:"preview"`
	Metrics MetricsConfig `yaml:"metrics"`
	History HistoryConfig `yaml:"history"`
	Redis   RedisConfig   `yaml:"redis"`
	NATS    NATSConfig    `yaml:"nats"`
}

// ProjectConfig locates the single entry point and the single output bundle.
// Relative paths are resolved against Root.
type ProjectConfig struct {
	Root    string            `yaml:"root"`
	Entry   string            `yaml:"entry"`
	Output  string            `yaml:"output"`
	Aliases map[string]string `yaml:"aliases,omitempty"` // bare import -> path or package
}

// BuildConfig holds the build mode and the development type checker.
type BuildConfig struct {
	Mode      BuildMode       `yaml:"mode"`
	TypeCheck TypeCheckConfig `yaml:"typecheck"`
}

// TypeCheckConfig configures the type checker run by development builds.
type TypeCheckConfig struct {
	Disabled bool     `yaml:"disabled,omitempty"`
	Command  []string `yaml:"command,omitempty"`
}

// LoggingConfig selects log level and handler format.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// PreviewConfig configures the preview server.
type PreviewConfig struct {
	Addr     string   `yaml:"addr"`
	Debounce string   `yaml:"debounce"`
	Watch    []string `yaml:"watch,omitempty"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// HistoryConfig configures the sqlite build ledger. An empty Path disables it.
type HistoryConfig struct {
	Path      string `yaml:"path,omitempty"`
	Retention string `yaml:"retention,omitempty"`
}

// RedisConfig configures the optional cross-process artifact mirror.
type RedisConfig struct {
	URL       string      `yaml:"url,omitempty"`
	KeyPrefix string      `yaml:"key_prefix,omitempty"`
	Retry     RetryConfig `yaml:"retry,omitempty"`
}

// RetryConfig tunes how failed mirror writes are retried. Unset fields keep
// the retry package defaults.
type RetryConfig struct {
	Backoff    string `yaml:"backoff,omitempty"` // fixed, linear or exponential
	Initial    string `yaml:"initial,omitempty"`
	Max        string `yaml:"max,omitempty"`
	MaxRetries *int   `yaml:"max_retries,omitempty"`
}

// NATSConfig configures optional build notifications.
type NATSConfig struct {
	URL     string `yaml:"url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load loads configuration from the specified file
func Load(configPath string) (*Config, error) {
	loaded, err := loadEnvFiles()
	if err != nil {
		return nil, pxerrors.ConfigInvalid(configPath, err)
	}
	for _, f := range loaded {
		slog.Debug("Loaded environment variables", "path", f)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, pxerrors.ConfigNotFound(configPath)
		}
		return nil, pxerrors.ConfigInvalid(configPath, fmt.Errorf("read config file: %w", err))
	}

	// Expand environment variables in the YAML content
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, pxerrors.ConfigInvalid(configPath, fmt.Errorf("unmarshal config: %w", err))
	}

	applyDefaults(&cfg)

	// A relative project root is taken relative to the config file, not the cwd.
	if !filepath.IsAbs(cfg.Project.Root) {
		cfg.Project.Root = filepath.Join(filepath.Dir(configPath), cfg.Project.Root)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configPath, falling back to Default when the file is
// absent and the caller did not ask for it explicitly.
func LoadOrDefault(configPath string, explicit bool) (*Config, error) {
	cfg, err := Load(configPath)
	if err == nil {
		return cfg, nil
	}
	if !explicit && pxerrors.IsCategory(err, pxerrors.CategoryConfig) {
		if _, statErr := os.Stat(configPath); errors.Is(statErr, fs.ErrNotExist) {
			slog.Debug("No configuration file, using defaults", "path", configPath)
			return Default(), nil
		}
	}
	return nil, err
}

// Init creates a new configuration file with example content
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := Default()
	example.Project.Aliases = map[string]string{"@px/runtime": "./codes/runtime/index.ts"}
	example.History.Path = ".pxbuild/history.db"

	data, err := yaml.Marshal(example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// AbsRoot returns the absolute project root.
func (p ProjectConfig) AbsRoot() (string, error) {
	return filepath.Abs(p.Root)
}

// DebounceDuration returns the parsed debounce delay.
func (p PreviewConfig) DebounceDuration() time.Duration {
	d, err := time.ParseDuration(p.Debounce)
	if err != nil {
		return defaultDebounce
	}
	return d
}

// RetentionDuration returns the parsed history retention window.
func (h HistoryConfig) RetentionDuration() time.Duration {
	d, err := time.ParseDuration(h.Retention)
	if err != nil {
		return defaultRetention
	}
	return d
}

// Policy returns the validated retry policy.
func (r RetryConfig) Policy() (retry.Policy, error) {
	initial, err := optionalDuration(r.Initial)
	if err != nil {
		return retry.Policy{}, fmt.Errorf("initial: %w", err)
	}
	maxDelay, err := optionalDuration(r.Max)
	if err != nil {
		return retry.Policy{}, fmt.Errorf("max: %w", err)
	}
	maxRetries := -1
	if r.MaxRetries != nil {
		if *r.MaxRetries < 0 {
			return retry.Policy{}, fmt.Errorf("max_retries cannot be negative")
		}
		maxRetries = *r.MaxRetries
	}
	p := retry.NewPolicy(retry.Backoff(r.Backoff), initial, maxDelay, maxRetries)
	if err := p.Validate(); err != nil {
		return retry.Policy{}, err
	}
	return p, nil
}

func optionalDuration(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	return time.ParseDuration(raw)
}
