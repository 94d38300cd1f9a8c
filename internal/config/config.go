// ABOUTME: Configuration loading and parsing for fanpost
// ABOUTME: Merges an optional YAML/TOML file, a .env file and the process environment

package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

// Config represents the complete fanpost configuration
type Config struct {
	Telegram TelegramConfig `yaml:"telegram" toml:"telegram"`
	Storage  StorageConfig  `yaml:"storage" toml:"storage"`
	Console  ConsoleConfig  `yaml:"console" toml:"console"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics" toml:"metrics"`
}

// TelegramConfig holds the bot credentials and delivery targets
type TelegramConfig struct {
	Token      string   `yaml:"token" toml:"token"`
	OperatorID int64    `yaml:"operator_id" toml:"operator_id"`
	Channels   []string `yaml:"channels" toml:"channels"`
	// SubscribeURL backs the subscribe button. Defaults to the t.me link of
	// the first @handle channel.
	SubscribeURL string `yaml:"subscribe_url" toml:"subscribe_url"`
	// PollTimeout is the long polling timeout in seconds.
	PollTimeout int `yaml:"poll_timeout" toml:"poll_timeout"`

	RequestTimeout    time.Duration `yaml:"-" toml:"-"`
	RequestTimeoutRaw string        `yaml:"request_timeout" toml:"request_timeout"`
}

// StorageConfig selects the snapshot backend
type StorageConfig struct {
	Driver string `yaml:"driver" toml:"driver"`
	Path   string `yaml:"path" toml:"path"`
}

// ConsoleConfig holds admin console and fan-out tuning
type ConsoleConfig struct {
	RecentLimit int `yaml:"recent_limit" toml:"recent_limit"`
	FanoutLimit int `yaml:"fanout_limit" toml:"fanout_limit"`

	DedupeTTL    time.Duration `yaml:"-" toml:"-"`
	DedupeTTLRaw string        `yaml:"dedupe_ttl" toml:"dedupe_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Addr    string `yaml:"addr" toml:"addr"`
	Path    string `yaml:"path" toml:"path"`
}

// environment lists the variables that override file values. TOKEN,
// ADMIN_ID and CHANNELS keep the names existing deployments already use.
type environment struct {
	Token         string   `env:"TOKEN"`
	OperatorID    int64    `env:"ADMIN_ID"`
	Channels      []string `env:"CHANNELS"`
	SubscribeURL  string   `env:"FANPOST_SUBSCRIBE_URL"`
	StorageDriver string   `env:"FANPOST_STORAGE_DRIVER"`
	StoragePath   string   `env:"FANPOST_STORAGE_PATH"`
	LogLevel      string   `env:"FANPOST_LOG_LEVEL"`
	LogFormat     string   `env:"FANPOST_LOG_FORMAT"`
	MetricsAddr   string   `env:"FANPOST_METRICS_ADDR"`
}

// Load builds the configuration from the file at path (skipped when path is
// empty), a .env file in the working directory if one exists, and the process
// environment, in increasing order of precedence.
func Load(path string) (*Config, error) {
	return load(context.Background(), path, ".env")
}

func load(ctx context.Context, path, dotenv string) (*Config, error) {
	var cfg Config

	if path != "" {
		if err := readFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	if dotenv != "" {
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading %s: %w", dotenv, err)
		}
	}

	var env environment
	if err := envconfig.Process(ctx, &env); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	env.apply(&cfg)

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func readFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return fmt.Errorf("parsing config file: %w", err)
		}
		return nil
	}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} with the variable's value, or with an
// empty string when it is unset.
func expandEnvVars(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envRef.FindStringSubmatch(match)[1])
	})
}

func (e environment) apply(cfg *Config) {
	if e.Token != "" {
		cfg.Telegram.Token = e.Token
	}
	if e.OperatorID != 0 {
		cfg.Telegram.OperatorID = e.OperatorID
	}
	if len(e.Channels) > 0 {
		cfg.Telegram.Channels = e.Channels
	}
	if e.SubscribeURL != "" {
		cfg.Telegram.SubscribeURL = e.SubscribeURL
	}
	if e.StorageDriver != "" {
		cfg.Storage.Driver = e.StorageDriver
	}
	if e.StoragePath != "" {
		cfg.Storage.Path = e.StoragePath
	}
	if e.LogLevel != "" {
		cfg.Logging.Level = e.LogLevel
	}
	if e.LogFormat != "" {
		cfg.Logging.Format = e.LogFormat
	}
	if e.MetricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = e.MetricsAddr
	}
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Telegram.RequestTimeoutRaw != "" {
		cfg.Telegram.RequestTimeout, err = time.ParseDuration(cfg.Telegram.RequestTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing request_timeout %q: %w", cfg.Telegram.RequestTimeoutRaw, err)
		}
	}

	if cfg.Console.DedupeTTLRaw != "" {
		cfg.Console.DedupeTTL, err = time.ParseDuration(cfg.Console.DedupeTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing dedupe_ttl %q: %w", cfg.Console.DedupeTTLRaw, err)
		}
	}

	return nil
}

func applyDefaults(cfg *Config) {
	channels := cfg.Telegram.Channels[:0]
	for _, ch := range cfg.Telegram.Channels {
		if ch = strings.TrimSpace(ch); ch != "" {
			channels = append(channels, ch)
		}
	}
	cfg.Telegram.Channels = channels

	if cfg.Telegram.SubscribeURL == "" {
		for _, ch := range cfg.Telegram.Channels {
			if strings.HasPrefix(ch, "@") {
				cfg.Telegram.SubscribeURL = "https://t.me/" + strings.TrimPrefix(ch, "@")
				break
			}
		}
	}
	if cfg.Telegram.RequestTimeout == 0 {
		cfg.Telegram.RequestTimeout = 10 * time.Second
	}
	if cfg.Telegram.PollTimeout == 0 {
		cfg.Telegram.PollTimeout = 60
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverJSON
	}
	if cfg.Storage.Path == "" {
		if cfg.Storage.Driver == DriverSQLite {
			cfg.Storage.Path = "posts.db"
		} else {
			cfg.Storage.Path = "posts.json"
		}
	}

	if cfg.Console.RecentLimit == 0 {
		cfg.Console.RecentLimit = 10
	}
	if cfg.Console.FanoutLimit == 0 {
		cfg.Console.FanoutLimit = 8
	}
	if cfg.Console.DedupeTTL == 0 {
		cfg.Console.DedupeTTL = 5 * time.Minute
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}

	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = "127.0.0.1:9090"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

var handle = regexp.MustCompile(`^@[A-Za-z0-9_]+$`)

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required (or set TOKEN)")
	}
	if c.Telegram.OperatorID <= 0 {
		return fmt.Errorf("telegram.operator_id must be a positive user id (or set ADMIN_ID)")
	}
	if len(c.Telegram.Channels) == 0 {
		return fmt.Errorf("at least one channel is required in telegram.channels (or set CHANNELS)")
	}
	seen := make(map[string]bool, len(c.Telegram.Channels))
	for _, ch := range c.Telegram.Channels {
		if !validChannel(ch) {
			return fmt.Errorf("channel %q must be an @handle or a numeric chat id", ch)
		}
		if seen[ch] {
			return fmt.Errorf("channel %q is listed twice", ch)
		}
		seen[ch] = true
	}
	if c.Telegram.RequestTimeout < 0 {
		return fmt.Errorf("telegram.request_timeout must be positive")
	}
	if c.Telegram.PollTimeout < 0 {
		return fmt.Errorf("telegram.poll_timeout must not be negative")
	}

	switch c.Storage.Driver {
	case DriverJSON, DriverSQLite:
	default:
		return fmt.Errorf("storage.driver must be %q or %q, got %q", DriverJSON, DriverSQLite, c.Storage.Driver)
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}

	if c.Console.RecentLimit < 0 {
		return fmt.Errorf("console.recent_limit must be positive")
	}
	if c.Console.FanoutLimit < 0 {
		return fmt.Errorf("console.fanout_limit must be positive")
	}
	if c.Console.DedupeTTL < 0 {
		return fmt.Errorf("console.dedupe_ttl must be positive")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format)
	}

	return nil
}

func validChannel(ch string) bool {
	if strings.HasPrefix(ch, "@") {
		return handle.MatchString(ch)
	}
	_, err := strconv.ParseInt(ch, 10, 64)
	return err == nil
}
