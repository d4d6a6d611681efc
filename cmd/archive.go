package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/meetchat/config"
	"github.com/otherjamesbrown/meetchat/pkg/archive"
	mcerrors "github.com/otherjamesbrown/meetchat/pkg/errors"
)

// ArchiveReader is the read and maintenance side of the conversation archive.
type ArchiveReader interface {
	Get(ctx context.Context, id int64) (*archive.Entry, error)
	List(ctx context.Context, opts archive.ListOptions) ([]*archive.Entry, error)
	AddLabels(ctx context.Context, id int64, labels ...string) error
	Delete(ctx context.Context, id int64) error
	Close() error
}

// ArchiveCommandDeps holds the dependencies for archive commands.
type ArchiveCommandDeps struct {
	LoadConfig  func() (*config.CLIConfig, error)
	OpenArchive func(*config.CLIConfig) (ArchiveReader, error)
}

// DefaultArchiveDeps returns the default dependencies for production use.
func DefaultArchiveDeps() *ArchiveCommandDeps {
	return &ArchiveCommandDeps{
		LoadConfig: config.LoadConfig,
		OpenArchive: func(cfg *config.CLIConfig) (ArchiveReader, error) {
			c, err := archive.Open(cfg.ArchiveDSN())
			if err != nil {
				return nil, err
			}
			return c, nil
		},
	}
}

// NewArchiveCommand creates the archive command with all subcommands.
func NewArchiveCommand(deps *ArchiveCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultArchiveDeps()
	}

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Browse archived conversations",
		Long: `Browse conversations saved with 'meetchat chat --archive'.

The archive lives in PostgreSQL: archive.dsn in the config file, or the
database section when no DSN is set. Run 'meetchat db migrate' first.

Examples:
  meetchat archive list --meeting m-42
  meetchat archive list --label standup --query budget
  meetchat archive list meeting:m-42 after:lastweek "launch date"
  meetchat archive show 17
  meetchat archive label 17 follow-up
  meetchat archive delete 17`,
	}

	cmd.AddCommand(newArchiveListCommand(deps))
	cmd.AddCommand(newArchiveShowCommand(deps))
	cmd.AddCommand(newArchiveLabelCommand(deps))
	cmd.AddCommand(newArchiveDeleteCommand(deps))

	return cmd
}

// withArchive loads config, opens the archive, and runs fn.
func withArchive(ctx context.Context, deps *ArchiveCommandDeps, fn func(context.Context, *config.CLIConfig, ArchiveReader) error) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	a, err := deps.OpenArchive(cfg)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	return fn(ctx, cfg, a)
}

func parseEntryID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid archive id %q: %w", s, mcerrors.ErrValidation)
	}
	return id, nil
}

func newArchiveListCommand(deps *ArchiveCommandDeps) *cobra.Command {
	var (
		opts   archive.ListOptions
		output string
	)

	cmd := &cobra.Command{
		Use:   "list [query...]",
		Short: "List archived conversations, newest first",
		Long: `List archived conversations, newest first.

The optional query accepts free text plus filters:
  meeting:<id>            conversations about one meeting
  label:<a,b>             conversations carrying every label
  after:<date>            created on or after the date
  before:<date>           created before the date
  limit:<n>               maximum number of results

Dates are YYYY-MM-DD or one of today, yesterday, lastweek, lastmonth.
Flags take precedence over filters in the query.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := archive.ParseQuery(strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("invalid query: %w", err)
			}
			listOpts := mergeListOptions(parsed, opts, cmd.Flags().Changed("limit"))

			return withArchive(cmd.Context(), deps, func(ctx context.Context, cfg *config.CLIConfig, a ArchiveReader) error {
				format, err := resolveOutputFormat(output, cfg)
				if err != nil {
					return err
				}
				entries, err := a.List(ctx, listOpts)
				if err != nil {
					return err
				}
				if entries == nil {
					entries = []*archive.Entry{}
				}

				return writeOutput(cmd.OutOrStdout(), format, entries, func(w io.Writer) error {
					if len(entries) == 0 {
						fmt.Fprintln(w, "No archived conversations.")
						return nil
					}
					fmt.Fprintf(w, "%-6s %-16s %-12s %-30s %-5s %s\n", "ID", "CREATED", "MEETING", "TITLE", "TURNS", "LABELS")
					for _, e := range entries {
						fmt.Fprintf(w, "%-6d %-16s %-12s %-30s %-5d %s\n",
							e.ID,
							e.CreatedAt.Local().Format("2006-01-02 15:04"),
							truncate(e.MeetingID, 12),
							truncate(e.Title, 30),
							e.TurnCount,
							strings.Join(e.Labels, ","))
					}
					return nil
				})
			})
		},
	}

	cmd.Flags().StringVar(&opts.MeetingID, "meeting", "", "Only conversations about this meeting")
	cmd.Flags().StringSliceVar(&opts.Labels, "label", nil, "Only conversations with all of these labels")
	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "Only conversations whose title or text contains this")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", archive.DefaultListLimit, "Maximum number of conversations")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output format: text, json, yaml")
	return cmd
}

// mergeListOptions layers flag values over a parsed query.
func mergeListOptions(parsed, flags archive.ListOptions, limitSet bool) archive.ListOptions {
	out := parsed
	if flags.MeetingID != "" {
		out.MeetingID = flags.MeetingID
	}
	out.Labels = append(out.Labels, flags.Labels...)

	var text []string
	for _, q := range []string{parsed.Query, flags.Query} {
		if q = strings.TrimSpace(q); q != "" {
			text = append(text, q)
		}
	}
	out.Query = strings.Join(text, " ")

	if limitSet || out.Limit <= 0 {
		out.Limit = flags.Limit
	}
	return out
}

func newArchiveShowCommand(deps *ArchiveCommandDeps) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print an archived conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEntryID(args[0])
			if err != nil {
				return err
			}
			return withArchive(cmd.Context(), deps, func(ctx context.Context, cfg *config.CLIConfig, a ArchiveReader) error {
				format, err := resolveOutputFormat(output, cfg)
				if err != nil {
					return err
				}
				e, err := a.Get(ctx, id)
				if err != nil {
					return err
				}
				return writeOutput(cmd.OutOrStdout(), format, e, func(w io.Writer) error {
					_, err := io.WriteString(w, e.Body)
					return err
				})
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output format: text, json, yaml")
	return cmd
}

func newArchiveLabelCommand(deps *ArchiveCommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "label <id> <label>...",
		Short: "Add labels to an archived conversation",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEntryID(args[0])
			if err != nil {
				return err
			}
			return withArchive(cmd.Context(), deps, func(ctx context.Context, _ *config.CLIConfig, a ArchiveReader) error {
				if err := a.AddLabels(ctx, id, args[1:]...); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Labeled #%d\n", id)
				return nil
			})
		},
	}
}

func newArchiveDeleteCommand(deps *ArchiveCommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete an archived conversation",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEntryID(args[0])
			if err != nil {
				return err
			}
			return withArchive(cmd.Context(), deps, func(ctx context.Context, _ *config.CLIConfig, a ArchiveReader) error {
				if err := a.Delete(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted #%d\n", id)
				return nil
			})
		},
	}
}
