package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/meetchat/config"
	"github.com/otherjamesbrown/meetchat/pkg/logging"
	"github.com/otherjamesbrown/meetchat/pkg/meeting"
	"github.com/otherjamesbrown/meetchat/pkg/tools"
)

// ToolsCommandDeps holds the dependencies for tools commands.
type ToolsCommandDeps struct {
	LoadConfig  func() (*config.CLIConfig, error)
	OpenMeeting func(context.Context, *config.CLIConfig, MeetingSource, logging.Logger) (*OpenedMeeting, error)
	NewEngine   func(context.Context, *config.CLIConfig, *OpenedMeeting, logging.Logger) (*Engine, error)
}

// DefaultToolsDeps returns the default dependencies for production use.
func DefaultToolsDeps() *ToolsCommandDeps {
	return &ToolsCommandDeps{
		LoadConfig:  config.LoadConfig,
		OpenMeeting: openMeeting,
		NewEngine:   newEngine,
	}
}

// toolView is the structured output form of a tool descriptor.
type toolView struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	Parameters  map[string]any `json:"parameters" yaml:"parameters"`
}

// NewToolsCommand creates the tools command with all subcommands.
func NewToolsCommand(deps *ToolsCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultToolsDeps()
	}

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect and run the meeting assistant tools",
		Long: `Inspect and run the tools the assistant calls while answering questions.

Every tool is bound to one meeting. Arguments are JSON validated against the
tool's parameter schema; malformed JSON is repaired where possible, and
anything still invalid is rejected before the tool runs.

Examples:
  meetchat tools list
  meetchat tools list -o json
  meetchat tools call searchTranscript --args '{"query":"budget"}' --file standup.json
  meetchat tools call getParticipantStats --db --meeting m-42`,
	}

	cmd.AddCommand(newToolsListCommand(deps))
	cmd.AddCommand(newToolsCallCommand(deps))

	return cmd
}

func newToolsListCommand(deps *ToolsCommandDeps) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the tool catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			format, err := resolveOutputFormat(output, cfg)
			if err != nil {
				return err
			}

			d, err := tools.NewDispatcher(tools.Config{Meetings: meeting.NewMemoryStore()})
			if err != nil {
				return err
			}
			views, err := toolViews(d.Descriptors())
			if err != nil {
				return err
			}

			return writeOutput(cmd.OutOrStdout(), format, views, func(w io.Writer) error {
				for _, v := range views {
					fmt.Fprintf(w, "%-24s %s\n", v.Name, v.Description)
					if params := paramNames(v.Parameters); params != "" {
						fmt.Fprintf(w, "%-24s   args: %s\n", "", params)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output format: text, json, yaml")
	return cmd
}

func toolViews(descriptors []tools.Descriptor) ([]toolView, error) {
	views := make([]toolView, 0, len(descriptors))
	for _, d := range descriptors {
		params, err := d.ParametersMap()
		if err != nil {
			return nil, err
		}
		views = append(views, toolView{Name: d.Name, Description: d.Description, Parameters: params})
	}
	return views, nil
}

// paramNames lists a schema's properties, marking required ones with "*".
func paramNames(schema map[string]any) string {
	props, _ := schema["properties"].(map[string]any)
	if len(props) == 0 {
		return ""
	}
	required := make(map[string]bool)
	if req, ok := schema["required"].([]any); ok {
		for _, r := range req {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	}

	names := make([]string, 0, len(props))
	for name := range props {
		if required[name] {
			name += "*"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func newToolsCallCommand(deps *ToolsCommandDeps) *cobra.Command {
	var (
		src     MeetingSource
		rawArgs string
		output  string
	)

	cmd := &cobra.Command{
		Use:   "call <tool>",
		Short: "Run one tool against a meeting",
		Long: `Run one tool against a meeting and print its result.

Tool failures (missing data, unavailable services, invalid arguments) are
reported as the tool's answer, the same way the assistant sees them.

Examples:
  meetchat tools call searchTranscript --args '{"query":"budget"}' --file standup.json
  meetchat tools call extractActionItems --args '{"assignee":"Dana"}' --file standup.json -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			format, err := resolveOutputFormat(output, cfg)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
			defer cancel()

			m, err := deps.OpenMeeting(ctx, cfg, src, logger)
			if err != nil {
				return err
			}
			defer m.Close()

			engine, err := deps.NewEngine(ctx, cfg, m, logger)
			if err != nil {
				return err
			}
			defer engine.Close()

			ctx = context.WithValue(ctx, logging.MeetingIDKey, m.Meeting.ID)
			res := engine.Dispatcher.Bind(m.Meeting.ID).Call(ctx, args[0], rawArgs)

			return writeOutput(cmd.OutOrStdout(), format, res, func(w io.Writer) error {
				fmt.Fprintln(w, res.Text)
				return nil
			})
		},
	}

	src.bindFlags(cmd)
	cmd.Flags().StringVar(&rawArgs, "args", "{}", "Tool arguments as a JSON object")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output format: text, json, yaml")
	return cmd
}
