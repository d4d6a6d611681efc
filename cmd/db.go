package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/meetchat/config"
	"github.com/otherjamesbrown/meetchat/pkg/db"
	"github.com/otherjamesbrown/meetchat/pkg/meeting"
)

// DbCommandDeps holds the dependencies for database commands.
type DbCommandDeps struct {
	LoadConfig  func() (*config.CLIConfig, error)
	ConnectToDB func(context.Context, *config.CLIConfig) (*pgxpool.Pool, error)
}

// DefaultDbDeps returns the default dependencies for production use.
func DefaultDbDeps() *DbCommandDeps {
	return &DbCommandDeps{
		LoadConfig:  config.LoadConfig,
		ConnectToDB: connectToDatabase,
	}
}

// NewDbCommand creates the root db command with all subcommands.
func NewDbCommand(deps *DbCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultDbDeps()
	}

	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
		Long: `Database management commands for the meeting store and conversation archive.

The schema migrations are bundled with the binary and tracked in the
schema_migrations table. Connection settings come from the database section
of the config file or MEETCHAT_DB_* environment variables.

Examples:
  # Show migration status
  meetchat db status

  # Apply all pending migrations
  meetchat db migrate

  # Load a meeting bundle so chat can use --db
  meetchat db import standup.json`,
		Aliases: []string{"database"},
	}

	cmd.AddCommand(newDbMigrateCommand(deps))
	cmd.AddCommand(newDbStatusCommand(deps))
	cmd.AddCommand(newDbImportCommand(deps))

	return cmd
}

// withPool loads config, connects, and runs fn with the pool.
func withPool(ctx context.Context, deps *DbCommandDeps, fn func(context.Context, *config.CLIConfig, *pgxpool.Pool) error) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	pool, err := deps.ConnectToDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, cfg, pool)
}

func newDbMigrateCommand(deps *DbCommandDeps) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Apply pending database migrations.

Each migration runs in its own transaction and is recorded in
schema_migrations. The first failure stops the run.

Examples:
  meetchat db migrate
  meetchat db migrate --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return withPool(cmd.Context(), deps, func(ctx context.Context, _ *config.CLIConfig, pool *pgxpool.Pool) error {
				if dryRun {
					status, err := db.Status(ctx, pool)
					if err != nil {
						return err
					}
					if len(status.Pending) == 0 {
						fmt.Fprintln(out, "No pending migrations.")
						return nil
					}
					fmt.Fprintf(out, "Would apply %d migrations:\n", len(status.Pending))
					for _, v := range status.Pending {
						fmt.Fprintf(out, "  %s\n", v)
					}
					return nil
				}

				result, err := db.Migrate(ctx, pool)
				if result != nil {
					for _, v := range result.Applied {
						fmt.Fprintf(out, "Applied %s\n", v)
					}
				}
				if err != nil {
					return err
				}
				if len(result.Applied) == 0 {
					fmt.Fprintln(out, "Database is up to date.")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be applied without executing")
	return cmd
}

func newDbStatusCommand(deps *DbCommandDeps) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show database migration status",
		Long: `Show which bundled migrations are applied and which are pending, with
connection pool health.

Examples:
  meetchat db status
  meetchat db status -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(cmd.Context(), deps, func(ctx context.Context, cfg *config.CLIConfig, pool *pgxpool.Pool) error {
				format, err := resolveOutputFormat(output, cfg)
				if err != nil {
					return err
				}
				health := db.Check(ctx, pool)
				status, err := db.Status(ctx, pool)
				if err != nil {
					return err
				}

				return writeOutput(cmd.OutOrStdout(), format, status, func(w io.Writer) error {
					fmt.Fprintf(w, "Database: %s (ping %s, %d/%d connections in use)\n",
						healthLabel(health.Healthy), health.Latency.Round(time.Millisecond), health.AcquiredConns, health.TotalConns)
					fmt.Fprintf(w, "Applied:  %d\n", len(status.Applied))
					fmt.Fprintf(w, "Pending:  %d\n", len(status.Pending))
					if len(status.Pending) > 0 {
						fmt.Fprintf(w, "  %s\n", strings.Join(status.Pending, "\n  "))
						fmt.Fprintln(w, "Run 'meetchat db migrate' to apply them.")
					}
					return nil
				})
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output format: text, json, yaml")
	return cmd
}

func healthLabel(healthy bool) string {
	if healthy {
		return "healthy"
	}
	return "unhealthy"
}

func newDbImportCommand(deps *DbCommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "import <bundle.json|transcript.vtt>...",
		Short: "Load meeting bundles into the database",
		Long: `Upsert meetings with their transcripts and summaries. Importing a meeting
again replaces its stored data.

Examples:
  meetchat db import standup.json retro.json
  meetchat db import call.vtt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(cmd.Context(), deps, func(ctx context.Context, cfg *config.CLIConfig, pool *pgxpool.Pool) error {
				store := meeting.NewPostgresStore(pool, newLogger(cfg))
				for _, path := range args {
					b, err := loadBundle(path)
					if err != nil {
						return err
					}
					if err := store.SaveBundle(ctx, b); err != nil {
						return fmt.Errorf("importing %s: %w", path, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Imported %s (%s)\n", b.Meeting.ID, path)
				}
				return nil
			})
		},
	}
}
