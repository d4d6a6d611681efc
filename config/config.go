// Package config provides CLI configuration management for the meetchat command-line tool.
// It supports loading configuration from YAML files, environment variables, and command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/meetchat/pkg/db"
)

// OutputFormat defines the supported output formats for CLI results.
type OutputFormat string

const (
	// OutputFormatText is human-readable plain text output.
	OutputFormatText OutputFormat = "text"
	// OutputFormatJSON is JSON-formatted output for machine processing.
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatYAML is YAML-formatted output for machine processing.
	OutputFormatYAML OutputFormat = "yaml"
)

// Default configuration values.
const (
	DefaultTimeout      = 2 * time.Minute
	DefaultOutputFormat = OutputFormatText
	DefaultConfigDir    = ".meetchat"
	DefaultConfigFile   = "config.yaml"
	DefaultModel        = "gpt-4o-mini"
	DefaultMaxSteps     = 5
	DefaultLogLevel     = "info"
	DefaultRedisPrefix  = "meetchat"
)

// TLSConfig holds client TLS settings for the analysis service.
type TLSConfig struct {
	// Enabled indicates whether TLS should be used for connections.
	Enabled bool `yaml:"enabled"`

	// CACert is the path to the CA certificate for verifying the server.
	CACert string `yaml:"ca_cert,omitempty"`

	// ClientCert is the path to the client certificate for mTLS authentication.
	ClientCert string `yaml:"client_cert,omitempty"`

	// ClientKey is the path to the client private key for mTLS authentication.
	ClientKey string `yaml:"client_key,omitempty"`

	// CertDir is a directory containing ca.crt, client.crt, and client.key files.
	// If set, it provides default paths for CACert, ClientCert, and ClientKey.
	CertDir string `yaml:"cert_dir,omitempty"`

	// SkipVerify disables server certificate verification (insecure, for testing only).
	SkipVerify bool `yaml:"skip_verify,omitempty"`
}

// ResolvePaths expands ~ in paths and sets defaults from CertDir if configured.
func (c *TLSConfig) ResolvePaths() {
	if c.CertDir != "" {
		c.CertDir = expandPath(c.CertDir)
		if c.CACert == "" {
			c.CACert = filepath.Join(c.CertDir, "ca.crt")
		}
		if c.ClientCert == "" {
			c.ClientCert = filepath.Join(c.CertDir, "client.crt")
		}
		if c.ClientKey == "" {
			c.ClientKey = filepath.Join(c.CertDir, "client.key")
		}
	} else {
		c.CACert = expandPath(c.CACert)
		c.ClientCert = expandPath(c.ClientCert)
		c.ClientKey = expandPath(c.ClientKey)
	}
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// OpenAIConfig configures the chat model. The API key lives in the credentials store.
type OpenAIConfig struct {
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url,omitempty"`
	Temperature float64 `yaml:"temperature,omitempty"`
	MaxTokens   int64   `yaml:"max_tokens,omitempty"`
	MaxSteps    int     `yaml:"max_steps,omitempty"`
}

// AnalysisConfig points at the remote sentiment and image generation service.
// An empty Address keeps sentiment local and disables image generation.
type AnalysisConfig struct {
	Address string    `yaml:"address,omitempty"`
	TLS     TLSConfig `yaml:"tls"`
}

// IsConfigured reports whether a remote analysis service is set.
func (c *AnalysisConfig) IsConfigured() bool {
	return c != nil && c.Address != ""
}

// RedisConfig configures the image store. An empty Addr keeps images in memory.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// IsConfigured reports whether Redis is set.
func (c *RedisConfig) IsConfigured() bool {
	return c != nil && c.Addr != ""
}

// ArchiveConfig configures the conversation archive.
type ArchiveConfig struct {
	// DSN is a lib/pq connection string. Empty falls back to the database section.
	DSN string `yaml:"dsn,omitempty"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint served during chat sessions.
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// CLIConfig holds the CLI configuration settings.
type CLIConfig struct {
	// Timeout bounds a single assistant turn or tool call.
	Timeout time.Duration `yaml:"timeout"`

	// OutputFormat specifies the default output format for commands.
	OutputFormat OutputFormat `yaml:"output_format"`

	// Debug enables verbose debug logging.
	Debug bool `yaml:"debug,omitempty"`

	OpenAI   OpenAIConfig   `yaml:"openai"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Database *db.Config     `yaml:"database,omitempty"`
	Redis    RedisConfig    `yaml:"redis"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// DefaultConfig returns a CLIConfig with default values.
func DefaultConfig() *CLIConfig {
	return &CLIConfig{
		Timeout:      DefaultTimeout,
		OutputFormat: DefaultOutputFormat,
		OpenAI: OpenAIConfig{
			Model:    DefaultModel,
			MaxSteps: DefaultMaxSteps,
		},
		Logging: LoggingConfig{Level: DefaultLogLevel},
	}
}

// ConfigDir returns the configuration directory path.
// Uses $MEETCHAT_CONFIG_DIR if set, otherwise ~/.meetchat
func ConfigDir() (string, error) {
	if dir := os.Getenv("MEETCHAT_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	return filepath.Join(home, DefaultConfigDir), nil
}

// ConfigPath returns the full path to the configuration file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultConfigFile), nil
}

// LoadConfig loads the CLI configuration from file and environment variables.
// Configuration is loaded in this order (later sources override earlier):
// 1. Default values
// 2. Config file (~/.meetchat/config.yaml or $MEETCHAT_CONFIG_DIR/config.yaml)
// 3. Environment variables (MEETCHAT_*)
func LoadConfig() (*CLIConfig, error) {
	cfg := DefaultConfig()

	configPath, err := ConfigPath()
	if err != nil {
		return nil, fmt.Errorf("getting config path: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// configFile mirrors CLIConfig with the timeout as a duration string.
type configFile struct {
	Timeout      string         `yaml:"timeout,omitempty"`
	OutputFormat OutputFormat   `yaml:"output_format,omitempty"`
	Debug        bool           `yaml:"debug,omitempty"`
	OpenAI       OpenAIConfig   `yaml:"openai"`
	Analysis     AnalysisConfig `yaml:"analysis"`
	Database     *db.Config     `yaml:"database,omitempty"`
	Redis        RedisConfig    `yaml:"redis,omitempty"`
	Archive      ArchiveConfig  `yaml:"archive,omitempty"`
	Logging      LoggingConfig  `yaml:"logging"`
	Metrics      MetricsConfig  `yaml:"metrics,omitempty"`
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(cfg *CLIConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fileCfg configFile
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if fileCfg.Timeout != "" {
		timeout, err := time.ParseDuration(fileCfg.Timeout)
		if err != nil {
			return fmt.Errorf("parsing timeout: %w", err)
		}
		cfg.Timeout = timeout
	}
	if fileCfg.OutputFormat != "" {
		cfg.OutputFormat = fileCfg.OutputFormat
	}
	cfg.Debug = fileCfg.Debug

	if fileCfg.OpenAI.Model != "" {
		cfg.OpenAI.Model = fileCfg.OpenAI.Model
	}
	if fileCfg.OpenAI.MaxSteps > 0 {
		cfg.OpenAI.MaxSteps = fileCfg.OpenAI.MaxSteps
	}
	cfg.OpenAI.BaseURL = fileCfg.OpenAI.BaseURL
	cfg.OpenAI.Temperature = fileCfg.OpenAI.Temperature
	cfg.OpenAI.MaxTokens = fileCfg.OpenAI.MaxTokens

	cfg.Analysis = fileCfg.Analysis
	if fileCfg.Database != nil {
		// Decode again over the defaults so a partial section still connects.
		section := struct {
			Database *db.Config `yaml:"database"`
		}{Database: db.DefaultConfig()}
		if err := yaml.Unmarshal(data, &section); err != nil {
			return fmt.Errorf("parsing database section: %w", err)
		}
		cfg.Database = section.Database
	}
	cfg.Redis = fileCfg.Redis
	cfg.Archive = fileCfg.Archive
	if fileCfg.Logging.Level != "" {
		cfg.Logging.Level = fileCfg.Logging.Level
	}
	cfg.Logging.JSON = fileCfg.Logging.JSON
	cfg.Metrics = fileCfg.Metrics

	return nil
}

// loadFromEnv overlays environment variables onto the configuration.
func loadFromEnv(cfg *CLIConfig) {
	if v := os.Getenv("MEETCHAT_TIMEOUT"); v != "" {
		if timeout, err := time.ParseDuration(v); err == nil {
			cfg.Timeout = timeout
		}
	}

	if v := os.Getenv("MEETCHAT_OUTPUT_FORMAT"); v != "" {
		cfg.OutputFormat = OutputFormat(v)
	}

	if v := os.Getenv("MEETCHAT_DEBUG"); v == "true" || v == "1" {
		cfg.Debug = true
	}

	if v := os.Getenv("MEETCHAT_MODEL"); v != "" {
		cfg.OpenAI.Model = v
	}
	if v := os.Getenv("MEETCHAT_OPENAI_BASE_URL"); v != "" {
		cfg.OpenAI.BaseURL = v
	}
	if v := os.Getenv("MEETCHAT_MAX_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.OpenAI.MaxSteps = n
		}
	}

	if v := os.Getenv("MEETCHAT_ANALYSIS_ADDRESS"); v != "" {
		cfg.Analysis.Address = v
	}

	// TLS environment variables.
	if v := os.Getenv("MEETCHAT_TLS_ENABLED"); v == "true" || v == "1" {
		cfg.Analysis.TLS.Enabled = true
	}
	if v := os.Getenv("MEETCHAT_TLS_CA_CERT"); v != "" {
		cfg.Analysis.TLS.CACert = v
	}
	if v := os.Getenv("MEETCHAT_TLS_CLIENT_CERT"); v != "" {
		cfg.Analysis.TLS.ClientCert = v
	}
	if v := os.Getenv("MEETCHAT_TLS_CLIENT_KEY"); v != "" {
		cfg.Analysis.TLS.ClientKey = v
	}
	if v := os.Getenv("MEETCHAT_TLS_CERT_DIR"); v != "" {
		cfg.Analysis.TLS.CertDir = v
	}
	if v := os.Getenv("MEETCHAT_TLS_SKIP_VERIFY"); v == "true" || v == "1" {
		cfg.Analysis.TLS.SkipVerify = true
	}

	if v := os.Getenv("MEETCHAT_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("MEETCHAT_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}

	if v := os.Getenv("MEETCHAT_ARCHIVE_DSN"); v != "" {
		cfg.Archive.DSN = v
	}

	if v := os.Getenv("MEETCHAT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MEETCHAT_LOG_JSON"); v == "true" || v == "1" {
		cfg.Logging.JSON = true
	}

	if v := os.Getenv("MEETCHAT_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}

	loadDatabaseFromEnv(cfg)
}

// loadDatabaseFromEnv overlays MEETCHAT_DB_* variables, creating the database
// section when any of them is set.
func loadDatabaseFromEnv(cfg *CLIConfig) {
	if cfg.Database == nil {
		if os.Getenv("MEETCHAT_DB_HOST") == "" && os.Getenv("MEETCHAT_DB_NAME") == "" {
			return
		}
		cfg.Database = db.DefaultConfig()
	}
	cfg.Database.ApplyEnv()
}

// Validate checks that the configuration is valid.
func (c *CLIConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	if !c.OutputFormat.IsValid() {
		return fmt.Errorf("invalid output_format: %q (must be text, json, or yaml)", c.OutputFormat)
	}

	if c.OpenAI.Model == "" {
		return fmt.Errorf("openai.model is required")
	}

	if c.OpenAI.MaxSteps <= 0 {
		return fmt.Errorf("openai.max_steps must be positive")
	}

	if c.Redis.DB < 0 {
		return fmt.Errorf("redis.db must not be negative")
	}

	if c.Database != nil {
		if err := c.Database.Validate(); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	return nil
}

// ArchiveDSN returns the archive connection string, falling back to the
// database section. Returns empty string if neither is configured.
func (c *CLIConfig) ArchiveDSN() string {
	if c.Archive.DSN != "" {
		return c.Archive.DSN
	}
	if c.Database != nil {
		return c.Database.ConnectionString()
	}
	return ""
}

// IsValid checks if the output format is valid.
func (f OutputFormat) IsValid() bool {
	switch f {
	case OutputFormatText, OutputFormatJSON, OutputFormatYAML:
		return true
	default:
		return false
	}
}

// String returns the string representation of the output format.
func (f OutputFormat) String() string {
	return string(f)
}

// SaveConfig saves the configuration to the config file.
func SaveConfig(cfg *CLIConfig) error {
	configDir, err := ConfigDir()
	if err != nil {
		return fmt.Errorf("getting config directory: %w", err)
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(configDir, DefaultConfigFile)

	fileCfg := configFile{
		Timeout:      cfg.Timeout.String(),
		OutputFormat: cfg.OutputFormat,
		Debug:        cfg.Debug,
		OpenAI:       cfg.OpenAI,
		Analysis:     cfg.Analysis,
		Database:     cfg.Database,
		Redis:        cfg.Redis,
		Archive:      cfg.Archive,
		Logging:      cfg.Logging,
		Metrics:      cfg.Metrics,
	}

	data, err := yaml.Marshal(&fileCfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}
