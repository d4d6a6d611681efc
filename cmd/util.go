// Package cmd provides CLI commands for the meetchat tool.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/meetchat/config"
	"github.com/otherjamesbrown/meetchat/pkg/db"
	mcerrors "github.com/otherjamesbrown/meetchat/pkg/errors"
	"github.com/otherjamesbrown/meetchat/pkg/images"
	"github.com/otherjamesbrown/meetchat/pkg/logging"
	"github.com/otherjamesbrown/meetchat/pkg/meeting"
	"github.com/otherjamesbrown/meetchat/pkg/transcript"
)

// MeetingSource selects where a command reads its meeting from.
type MeetingSource struct {
	File      string
	MeetingID string
	UseDB     bool
}

func (s *MeetingSource) bindFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&s.File, "file", "f", "", "Meeting bundle (.json) or WebVTT transcript (.vtt)")
	cmd.Flags().StringVar(&s.MeetingID, "meeting", "", "Meeting ID to read from PostgreSQL (with --db)")
	cmd.Flags().BoolVar(&s.UseDB, "db", false, "Read the meeting from PostgreSQL instead of a file")
}

// OpenedMeeting is a meeting store plus the meeting a command works on.
type OpenedMeeting struct {
	Store   meeting.Store
	Meeting *meeting.Meeting
	// Pool is set when the store is backed by PostgreSQL.
	Pool *pgxpool.Pool
}

// Close releases the database pool, if any.
func (m *OpenedMeeting) Close() {
	if m.Pool != nil {
		m.Pool.Close()
	}
}

// Transcript returns the meeting transcript.
func (m *OpenedMeeting) Transcript(ctx context.Context) (*transcript.Transcript, error) {
	return m.Store.GetTranscript(ctx, m.Meeting.ID)
}

// openMeeting loads the meeting named by src.
func openMeeting(ctx context.Context, cfg *config.CLIConfig, src MeetingSource, logger logging.Logger) (*OpenedMeeting, error) {
	switch {
	case src.UseDB:
		if src.MeetingID == "" {
			return nil, fmt.Errorf("--meeting is required with --db: %w", mcerrors.ErrValidation)
		}
		pool, err := connectToDatabase(ctx, cfg)
		if err != nil {
			return nil, err
		}
		store := meeting.NewPostgresStore(pool, logger)
		m, err := store.GetMeeting(ctx, src.MeetingID)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return &OpenedMeeting{Store: store, Meeting: m, Pool: pool}, nil

	case src.File != "":
		b, err := loadBundle(src.File)
		if err != nil {
			return nil, err
		}
		store := meeting.NewMemoryStore()
		if err := store.Add(b); err != nil {
			return nil, err
		}
		m := b.Meeting
		return &OpenedMeeting{Store: store, Meeting: &m}, nil

	default:
		return nil, fmt.Errorf("either --file or --db with --meeting is required: %w", mcerrors.ErrValidation)
	}
}

// loadBundle reads a meeting bundle. A .vtt file is wrapped in a bundle whose
// meeting id and title are the file name.
func loadBundle(path string) (*meeting.Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	ext := filepath.Ext(path)
	if !strings.EqualFold(ext, ".vtt") {
		return meeting.DecodeBundle(f)
	}

	t, err := transcript.ParseVTT(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), ext)
	return &meeting.Bundle{
		Meeting: meeting.Meeting{
			ID:           name,
			Title:        name,
			Status:       meeting.StatusCompleted,
			Participants: t.Speakers(),
		},
		Transcript: t,
	}, nil
}

// databaseConfig returns the configured database section, or one built from
// MEETCHAT_DB_* variables and defaults.
func databaseConfig(cfg *config.CLIConfig) *db.Config {
	if cfg != nil && cfg.Database != nil {
		return cfg.Database
	}
	dbCfg := db.DefaultConfig()
	dbCfg.ApplyEnv()
	return dbCfg
}

// connectToDatabase establishes a database connection.
func connectToDatabase(ctx context.Context, cfg *config.CLIConfig) (*pgxpool.Pool, error) {
	pool, err := db.Connect(ctx, databaseConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return pool, nil
}

// connectToRedis establishes a Redis connection.
func connectToRedis(ctx context.Context, cfg *config.CLIConfig) (*redis.Client, error) {
	client, err := images.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Redis.Addr, err)
	}
	return client, nil
}

// newLogger builds the command logger. Logs go to stderr so they never mix
// with command output.
func newLogger(cfg *config.CLIConfig) logging.Logger {
	level := logging.ParseLevel(cfg.Logging.Level)
	if cfg.Debug {
		level = logging.LevelDebug
	}
	return logging.NewLogger(&logging.Config{
		Level:       level,
		ServiceName: "meetchat",
		JSONFormat:  cfg.Logging.JSON,
		Output:      os.Stderr,
	})
}

// resolveOutputFormat prefers the command flag over the configured default.
func resolveOutputFormat(flag string, cfg *config.CLIConfig) (config.OutputFormat, error) {
	format := cfg.OutputFormat
	if flag != "" {
		format = config.OutputFormat(strings.ToLower(flag))
	}
	if format == "" {
		format = config.OutputFormatText
	}
	if !format.IsValid() {
		return "", fmt.Errorf("invalid output format %q (must be text, json, or yaml): %w", flag, mcerrors.ErrValidation)
	}
	return format, nil
}

// writeOutput renders v as JSON or YAML, or calls text for text output.
func writeOutput(w io.Writer, format config.OutputFormat, v any, text func(io.Writer) error) error {
	switch format {
	case config.OutputFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case config.OutputFormatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return text(w)
	}
}

// truncate shortens s to n runes with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
