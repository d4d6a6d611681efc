package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/otherjamesbrown/meetchat/pkg/db"
)

// clearEnv isolates a test from MEETCHAT_* variables set in the environment.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, "MEETCHAT_") {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("MEETCHAT_CONFIG_DIR", dir)
	if body != "" {
		if err := os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte(body), 0600); err != nil {
			t.Fatalf("writing config: %v", err)
		}
	}
	return dir
}

// TestDefaultConfig verifies default configuration values.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, DefaultTimeout)
	}
	if cfg.OutputFormat != DefaultOutputFormat {
		t.Errorf("OutputFormat = %v, want %v", cfg.OutputFormat, DefaultOutputFormat)
	}
	if cfg.OpenAI.Model != DefaultModel {
		t.Errorf("OpenAI.Model = %v, want %v", cfg.OpenAI.Model, DefaultModel)
	}
	if cfg.OpenAI.MaxSteps != DefaultMaxSteps {
		t.Errorf("OpenAI.MaxSteps = %v, want %v", cfg.OpenAI.MaxSteps, DefaultMaxSteps)
	}
	if cfg.Database != nil {
		t.Error("Database should be unset by default")
	}
	if cfg.Analysis.IsConfigured() || cfg.Redis.IsConfigured() {
		t.Error("remote services should be unset by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

// TestOutputFormat_IsValid verifies output format validation.
func TestOutputFormat_IsValid(t *testing.T) {
	tests := []struct {
		format OutputFormat
		valid  bool
	}{
		{OutputFormatText, true},
		{OutputFormatJSON, true},
		{OutputFormatYAML, true},
		{"invalid", false},
		{"", false},
		{"JSON", false},
	}

	for _, tc := range tests {
		if got := tc.format.IsValid(); got != tc.valid {
			t.Errorf("OutputFormat(%q).IsValid() = %v, want %v", tc.format, got, tc.valid)
		}
	}
}

// TestCLIConfig_Validate verifies configuration validation.
func TestCLIConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CLIConfig)
		wantErr bool
	}{
		{name: "valid", mutate: func(*CLIConfig) {}},
		{name: "zero timeout", mutate: func(c *CLIConfig) { c.Timeout = 0 }, wantErr: true},
		{name: "bad output", mutate: func(c *CLIConfig) { c.OutputFormat = "xml" }, wantErr: true},
		{name: "no model", mutate: func(c *CLIConfig) { c.OpenAI.Model = "" }, wantErr: true},
		{name: "no steps", mutate: func(c *CLIConfig) { c.OpenAI.MaxSteps = 0 }, wantErr: true},
		{name: "negative redis db", mutate: func(c *CLIConfig) { c.Redis.DB = -1 }, wantErr: true},
		{name: "bad database", mutate: func(c *CLIConfig) { c.Database = &db.Config{} }, wantErr: true},
		{name: "valid database", mutate: func(c *CLIConfig) { c.Database = db.DefaultConfig() }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

// TestLoadConfig_NoFile verifies defaults apply when no file exists.
func TestLoadConfig_NoFile(t *testing.T) {
	clearEnv(t)
	writeConfig(t, "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.OpenAI.Model != DefaultModel {
		t.Errorf("OpenAI.Model = %v, want %v", cfg.OpenAI.Model, DefaultModel)
	}
}

// TestLoadConfig_FromFile verifies every section is read from YAML.
func TestLoadConfig_FromFile(t *testing.T) {
	clearEnv(t)
	writeConfig(t, `
timeout: 45s
output_format: json
openai:
  model: gpt-4o
  base_url: http://localhost:8080/v1
  max_steps: 3
analysis:
  address: analysis.internal:7443
  tls:
    enabled: true
    cert_dir: /etc/meetchat/certs
database:
  host: db.internal
  database: meetings
redis:
  addr: localhost:6379
  db: 2
archive:
  dsn: postgres://archive
logging:
  level: debug
  json: true
metrics:
  addr: :9464
`)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Timeout != 45*time.Second {
		t.Errorf("Timeout = %v, want 45s", cfg.Timeout)
	}
	if cfg.OutputFormat != OutputFormatJSON {
		t.Errorf("OutputFormat = %v, want json", cfg.OutputFormat)
	}
	if cfg.OpenAI.Model != "gpt-4o" || cfg.OpenAI.MaxSteps != 3 {
		t.Errorf("OpenAI = %+v", cfg.OpenAI)
	}
	if cfg.OpenAI.BaseURL != "http://localhost:8080/v1" {
		t.Errorf("OpenAI.BaseURL = %v", cfg.OpenAI.BaseURL)
	}
	if !cfg.Analysis.IsConfigured() || !cfg.Analysis.TLS.Enabled {
		t.Errorf("Analysis = %+v", cfg.Analysis)
	}
	if cfg.Database == nil {
		t.Fatal("Database should be set")
	}
	if cfg.Database.Host != "db.internal" || cfg.Database.Database != "meetings" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	// Unset fields keep their defaults.
	if cfg.Database.Port != 5432 || cfg.Database.User != "meetchat" {
		t.Errorf("Database defaults lost: %+v", cfg.Database)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Redis.DB != 2 {
		t.Errorf("Redis = %+v", cfg.Redis)
	}
	if cfg.ArchiveDSN() != "postgres://archive" {
		t.Errorf("ArchiveDSN() = %v", cfg.ArchiveDSN())
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.JSON {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if cfg.Metrics.Addr != ":9464" {
		t.Errorf("Metrics.Addr = %v", cfg.Metrics.Addr)
	}
}

// TestLoadConfig_EnvOverrides verifies environment variables win over the file.
func TestLoadConfig_EnvOverrides(t *testing.T) {
	clearEnv(t)
	writeConfig(t, "openai:\n  model: gpt-4o\n")

	t.Setenv("MEETCHAT_MODEL", "gpt-4.1-mini")
	t.Setenv("MEETCHAT_TIMEOUT", "5m")
	t.Setenv("MEETCHAT_REDIS_ADDR", "redis:6379")
	t.Setenv("MEETCHAT_ANALYSIS_ADDRESS", "localhost:7000")
	t.Setenv("MEETCHAT_TLS_SKIP_VERIFY", "true")
	t.Setenv("MEETCHAT_DB_HOST", "pg")
	t.Setenv("MEETCHAT_LOG_LEVEL", "warn")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.OpenAI.Model != "gpt-4.1-mini" {
		t.Errorf("OpenAI.Model = %v", cfg.OpenAI.Model)
	}
	if cfg.Timeout != 5*time.Minute {
		t.Errorf("Timeout = %v", cfg.Timeout)
	}
	if cfg.Redis.Addr != "redis:6379" {
		t.Errorf("Redis.Addr = %v", cfg.Redis.Addr)
	}
	if cfg.Analysis.Address != "localhost:7000" || !cfg.Analysis.TLS.SkipVerify {
		t.Errorf("Analysis = %+v", cfg.Analysis)
	}
	if cfg.Database == nil || cfg.Database.Host != "pg" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %v", cfg.Logging.Level)
	}
}

// TestLoadConfig_InvalidFile verifies parse errors are reported.
func TestLoadConfig_InvalidFile(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "bad yaml", body: "openai: [unclosed"},
		{name: "bad timeout", body: "timeout: soon"},
		{name: "bad output", body: "output_format: xml"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			writeConfig(t, tc.body)
			if _, err := LoadConfig(); err == nil {
				t.Error("LoadConfig() expected error")
			}
		})
	}
}

// TestSaveConfig_RoundTrip verifies a saved config loads back unchanged.
func TestSaveConfig_RoundTrip(t *testing.T) {
	clearEnv(t)
	dir := writeConfig(t, "")

	cfg := DefaultConfig()
	cfg.Timeout = 90 * time.Second
	cfg.OpenAI.Model = "gpt-4o"
	cfg.Redis.Addr = "localhost:6379"
	cfg.Archive.DSN = "postgres://archive"

	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig() error = %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, DefaultConfigFile))
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config file mode = %o, want 600", perm)
	}

	loaded, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if loaded.Timeout != cfg.Timeout || loaded.OpenAI.Model != cfg.OpenAI.Model {
		t.Errorf("loaded = %+v", loaded)
	}
	if loaded.Redis.Addr != cfg.Redis.Addr || loaded.Archive.DSN != cfg.Archive.DSN {
		t.Errorf("loaded = %+v", loaded)
	}
}

// TestTLSConfig_ResolvePaths verifies cert paths default from CertDir.
func TestTLSConfig_ResolvePaths(t *testing.T) {
	cfg := TLSConfig{CertDir: "/certs", ClientKey: "/elsewhere/key.pem"}
	cfg.ResolvePaths()

	if cfg.CACert != filepath.Join("/certs", "ca.crt") {
		t.Errorf("CACert = %v", cfg.CACert)
	}
	if cfg.ClientCert != filepath.Join("/certs", "client.crt") {
		t.Errorf("ClientCert = %v", cfg.ClientCert)
	}
	if cfg.ClientKey != "/elsewhere/key.pem" {
		t.Errorf("ClientKey = %v", cfg.ClientKey)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	tilde := TLSConfig{CACert: "~/ca.crt"}
	tilde.ResolvePaths()
	if tilde.CACert != filepath.Join(home, "ca.crt") {
		t.Errorf("CACert = %v", tilde.CACert)
	}
}

// TestArchiveDSN_FallsBackToDatabase verifies the archive reuses the database section.
func TestArchiveDSN_FallsBackToDatabase(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ArchiveDSN() != "" {
		t.Errorf("ArchiveDSN() = %v, want empty", cfg.ArchiveDSN())
	}

	clearEnv(t)
	writeConfig(t, "database:\n  host: pg\n")
	loaded, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if loaded.ArchiveDSN() != loaded.Database.ConnectionString() {
		t.Errorf("ArchiveDSN() = %v", loaded.ArchiveDSN())
	}
}
