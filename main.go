// Package main provides the meetchat CLI entry point.
// meetchat answers questions about a recorded meeting by letting a chat model
// call tools over the meeting's transcript, summary, and metadata.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/meetchat/cmd"
	"github.com/otherjamesbrown/meetchat/config"
	"github.com/otherjamesbrown/meetchat/pkg/buildinfo"
)

// Global flags.
var (
	timeout      time.Duration
	outputFormat string
	debug        bool
)

// loadConfig loads the configuration and applies the global flag overrides.
func loadConfig() (*config.CLIConfig, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if timeout != 0 {
		cfg.Timeout = timeout
	}
	if outputFormat != "" {
		format := config.OutputFormat(strings.ToLower(outputFormat))
		if !format.IsValid() {
			return nil, fmt.Errorf("invalid output format: %s (must be text, json, or yaml)", outputFormat)
		}
		cfg.OutputFormat = format
	}
	if debug {
		cfg.Debug = true
	}
	return cfg, nil
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "meetchat",
	Short: "Ask questions about recorded meetings",
	Long: `meetchat is a chat assistant for recorded meetings.

A chat model answers questions by calling tools over one meeting: transcript
search, participant statistics, action items, decisions, topics, scheduling,
sentiment, people mentioned, and image generation.

COMMON WORKFLOWS:
  First run:        meetchat config init  →  meetchat auth set-key openai
  Chat:             meetchat chat --file standup.json
  From PostgreSQL:  meetchat db migrate  →  meetchat db import standup.json  →  meetchat chat --db --meeting m-42
  Read transcript:  meetchat transcript show --file standup.json
  Try a tool:       meetchat tools call searchTranscript --args '{"query":"budget"}' --file standup.json

DISCOVERY:
  meetchat <command> --help   Subcommands, flags, and examples for any command
  meetchat tools list         The tools the assistant can call`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// versionOutputJSON selects JSON output for the version command.
var versionOutputJSON bool

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the version, commit hash, and build time of the meetchat CLI.

Examples:
  meetchat version
  meetchat version --output-json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := buildinfo.Get(buildinfo.ServiceName)
		out := cmd.OutOrStdout()

		if versionOutputJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		}

		fmt.Fprintf(out, "meetchat version %s\n", info.Version)
		fmt.Fprintf(out, "  commit:     %s\n", info.Commit)
		fmt.Fprintf(out, "  built:      %s\n", info.BuildTime)
		fmt.Fprintf(out, "  go:         %s (%s)\n", info.GoVersion, info.Platform)
		return nil
	},
}

// configCmd manages CLI configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long:  `View and modify the meetchat configuration settings.`,
}

// configShowCmd displays current configuration.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration: file, environment, and flags combined.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		configPath, _ := config.ConfigPath()

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Current configuration:")
		fmt.Fprintf(out, "  Config file:    %s\n", configPath)
		fmt.Fprintf(out, "  Timeout:        %s\n", cfg.Timeout)
		fmt.Fprintf(out, "  Output format:  %s\n", cfg.OutputFormat)
		fmt.Fprintf(out, "  Debug:          %t\n", cfg.Debug)
		fmt.Fprintf(out, "  Model:          %s\n", cfg.OpenAI.Model)
		fmt.Fprintf(out, "  Model base URL: %s\n", valueOrDefault(cfg.OpenAI.BaseURL, "(provider default)"))
		fmt.Fprintf(out, "  Max tool steps: %d\n", cfg.OpenAI.MaxSteps)
		fmt.Fprintf(out, "  Analysis:       %s\n", valueOrDefault(cfg.Analysis.Address, "(local sentiment, no images)"))
		fmt.Fprintf(out, "  Redis:          %s\n", valueOrDefault(cfg.Redis.Addr, "(images in memory)"))
		fmt.Fprintf(out, "  Database:       %s\n", databaseLabel(cfg))
		fmt.Fprintf(out, "  Archive:        %s\n", boolToEnabled(cfg.ArchiveDSN() != ""))
		fmt.Fprintf(out, "  Log level:      %s\n", cfg.Logging.Level)
		fmt.Fprintf(out, "  Metrics:        %s\n", valueOrDefault(cfg.Metrics.Addr, "(not served)"))
		return nil
	},
}

func databaseLabel(cfg *config.CLIConfig) string {
	if cfg.Database == nil {
		return "(not set)"
	}
	return fmt.Sprintf("%s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
}

// configInitCmd initializes configuration.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	Long:  `Create a new configuration file with default values if one doesn't exist.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		configPath, err := config.ConfigPath()
		if err != nil {
			return fmt.Errorf("getting config path: %w", err)
		}

		if _, err := os.Stat(configPath); err == nil {
			fmt.Fprintf(out, "Configuration file already exists: %s\n", configPath)
			fmt.Fprintln(out, "Use 'meetchat config show' to view current settings.")
			return nil
		}

		defaultCfg := config.DefaultConfig()
		if err := config.SaveConfig(defaultCfg); err != nil {
			return fmt.Errorf("saving configuration: %w", err)
		}

		fmt.Fprintf(out, "Created configuration file: %s\n", configPath)
		fmt.Fprintln(out, "\nDefault settings:")
		fmt.Fprintf(out, "  Timeout:        %s\n", defaultCfg.Timeout)
		fmt.Fprintf(out, "  Output format:  %s\n", defaultCfg.OutputFormat)
		fmt.Fprintf(out, "  Model:          %s\n", defaultCfg.OpenAI.Model)
		fmt.Fprintln(out, "\nNext: meetchat auth set-key openai")
		return nil
	},
}

// configSetCmd sets a configuration value.
var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the config file.

Available keys:
  timeout             - Per-turn timeout (e.g., 30s, 2m)
  output_format       - Default output format (text, json, yaml)
  debug               - Enable debug logging (true/false)
  openai.model        - Chat model name
  openai.base_url     - OpenAI-compatible endpoint
  openai.max_steps    - Tool rounds allowed per turn
  analysis.address    - Sentiment and image service (host:port)
  redis.addr          - Redis for generated images (host:port)
  archive.dsn         - PostgreSQL connection string for the archive
  logging.level       - Log level (debug, info, warn, error)
  metrics.addr        - Serve /metrics during chat (e.g., :9464)

Examples:
  meetchat config set timeout 1m
  meetchat config set openai.model gpt-4o
  meetchat config set redis.addr localhost:6379`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		currentCfg, err := config.LoadConfig()
		if err != nil {
			currentCfg = config.DefaultConfig()
		}
		if err := applyConfigValue(currentCfg, key, value); err != nil {
			return err
		}
		if err := currentCfg.Validate(); err != nil {
			return err
		}
		if err := config.SaveConfig(currentCfg); err != nil {
			return fmt.Errorf("saving configuration: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
		return nil
	},
}

// applyConfigValue sets one dotted key on cfg.
func applyConfigValue(cfg *config.CLIConfig, key, value string) error {
	switch key {
	case "timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid timeout value: %w", err)
		}
		cfg.Timeout = d
	case "output_format":
		format := config.OutputFormat(value)
		if !format.IsValid() {
			return fmt.Errorf("invalid output format: %s (must be text, json, or yaml)", value)
		}
		cfg.OutputFormat = format
	case "debug":
		b, err := parseBool(value)
		if err != nil {
			return fmt.Errorf("invalid debug value: %s (must be true or false)", value)
		}
		cfg.Debug = b
	case "openai.model":
		cfg.OpenAI.Model = value
	case "openai.base_url":
		cfg.OpenAI.BaseURL = value
	case "openai.max_steps":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid max_steps value: %w", err)
		}
		cfg.OpenAI.MaxSteps = n
	case "analysis.address":
		cfg.Analysis.Address = value
	case "redis.addr":
		cfg.Redis.Addr = value
	case "archive.dsn":
		cfg.Archive.DSN = value
	case "logging.level":
		cfg.Logging.Level = strings.ToLower(value)
	case "metrics.addr":
		cfg.Metrics.Addr = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

func parseBool(s string) (bool, error) {
	switch s {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", s)
}

// completionCmd generates shell completion scripts.
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for meetchat.

Bash:
  $ source <(meetchat completion bash)

Zsh:
  $ meetchat completion zsh > "${fpath[1]}/_meetchat"

Fish:
  $ meetchat completion fish | source

PowerShell:
  PS> meetchat completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(out)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(out)
		}
		return nil
	},
}

func boolToEnabled(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func valueOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}

func init() {
	// Global flags.
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "per-turn timeout (e.g., 30s, 1m)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "", "default output format: text, json, yaml")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddGroup(
		&cobra.Group{ID: "meetings", Title: "Meetings:"},
		&cobra.Group{ID: "ops", Title: "Operations:"},
		&cobra.Group{ID: "setup", Title: "Setup:"},
	)

	// Meetings
	chatDeps := cmd.DefaultChatDeps()
	chatDeps.LoadConfig = loadConfig
	chatCmd := cmd.NewChatCommand(chatDeps)
	chatCmd.GroupID = "meetings"
	rootCmd.AddCommand(chatCmd)

	transcriptDeps := cmd.DefaultTranscriptDeps()
	transcriptDeps.LoadConfig = loadConfig
	transcriptCmd := cmd.NewTranscriptCommand(transcriptDeps)
	transcriptCmd.GroupID = "meetings"
	rootCmd.AddCommand(transcriptCmd)

	toolsDeps := cmd.DefaultToolsDeps()
	toolsDeps.LoadConfig = loadConfig
	toolsCmd := cmd.NewToolsCommand(toolsDeps)
	toolsCmd.GroupID = "meetings"
	rootCmd.AddCommand(toolsCmd)

	archiveDeps := cmd.DefaultArchiveDeps()
	archiveDeps.LoadConfig = loadConfig
	archiveCmd := cmd.NewArchiveCommand(archiveDeps)
	archiveCmd.GroupID = "meetings"
	rootCmd.AddCommand(archiveCmd)

	// Operations
	dbDeps := cmd.DefaultDbDeps()
	dbDeps.LoadConfig = loadConfig
	dbCmd := cmd.NewDbCommand(dbDeps)
	dbCmd.GroupID = "ops"
	rootCmd.AddCommand(dbCmd)

	// Setup
	configCmd.GroupID = "setup"
	rootCmd.AddCommand(configCmd)

	authCmd := cmd.NewAuthCommand(nil)
	authCmd.GroupID = "setup"
	rootCmd.AddCommand(authCmd)

	completionCmd.GroupID = "setup"
	rootCmd.AddCommand(completionCmd)

	versionCmd.GroupID = "setup"
	versionCmd.Flags().BoolVar(&versionOutputJSON, "output-json", false, "Output as JSON")
	rootCmd.AddCommand(versionCmd)

	// Config subcommands.
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
}

func main() {
	// Cancelling the context ends a chat session cleanly so it can still be archived.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
