package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/otherjamesbrown/meetchat/config"
	"github.com/otherjamesbrown/meetchat/credentials"
	"github.com/otherjamesbrown/meetchat/pkg/archive"
	"github.com/otherjamesbrown/meetchat/pkg/chat"
	"github.com/otherjamesbrown/meetchat/pkg/logging"
	"github.com/otherjamesbrown/meetchat/pkg/meeting"
	"github.com/otherjamesbrown/meetchat/pkg/orchestrator"
	"github.com/otherjamesbrown/meetchat/pkg/session"
	"github.com/otherjamesbrown/meetchat/pkg/tools"
	"github.com/otherjamesbrown/meetchat/pkg/transcript"
)

// Archiver stores finished conversations.
type Archiver interface {
	Save(ctx context.Context, meetingID, title string, format transcript.Format, body string, opts ...archive.SaveOption) (*archive.Entry, error)
	Close() error
}

// ChatCommandDeps holds the dependencies for the chat command.
type ChatCommandDeps struct {
	LoadConfig  func() (*config.CLIConfig, error)
	OpenMeeting func(context.Context, *config.CLIConfig, MeetingSource, logging.Logger) (*OpenedMeeting, error)
	NewEngine   func(context.Context, *config.CLIConfig, *OpenedMeeting, logging.Logger) (*Engine, error)
	NewModel    func(*config.CLIConfig) (orchestrator.Model, error)
	OpenArchive func(*config.CLIConfig) (Archiver, error)
}

// DefaultChatDeps returns the default dependencies for production use.
func DefaultChatDeps() *ChatCommandDeps {
	return &ChatCommandDeps{
		LoadConfig:  config.LoadConfig,
		OpenMeeting: openMeeting,
		NewEngine:   newEngine,
		NewModel:    newOpenAIModel,
		OpenArchive: openArchive,
	}
}

// newOpenAIModel builds the chat model from config and the stored API key.
func newOpenAIModel(cfg *config.CLIConfig) (orchestrator.Model, error) {
	key, err := openAIKey()
	if err != nil {
		return nil, err
	}
	return orchestrator.NewOpenAIModel(orchestrator.OpenAIConfig{
		APIKey:      key,
		BaseURL:     cfg.OpenAI.BaseURL,
		Model:       cfg.OpenAI.Model,
		Temperature: cfg.OpenAI.Temperature,
		MaxTokens:   cfg.OpenAI.MaxTokens,
	})
}

// openAIKey returns the OpenAI key from the environment or the credential store.
func openAIKey() (string, error) {
	envVar := credentials.EnvVar(credentials.ProviderOpenAI)
	if v := os.Getenv(envVar); v != "" {
		return v, nil
	}

	store, err := credentials.NewStore()
	if err != nil {
		return "", fmt.Errorf("initializing credential store: %w", err)
	}
	key, _, err := store.Key(credentials.ProviderOpenAI)
	if errors.Is(err, credentials.ErrNoCredentials) {
		return "", fmt.Errorf("no OpenAI API key: run 'meetchat auth set-key openai' or set %s", envVar)
	}
	return key, err
}

func openArchive(cfg *config.CLIConfig) (Archiver, error) {
	c, err := archive.Open(cfg.ArchiveDSN())
	if err != nil {
		return nil, err
	}
	return c, nil
}

// NewChatCommand creates the chat command.
func NewChatCommand(deps *ChatCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultChatDeps()
	}

	var (
		src       MeetingSource
		showTools bool
		archiveIt bool
		labels    []string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask questions about a meeting",
		Long: `Start a conversation with the meeting assistant.

Type a question and press enter. The assistant answers using tools that read
the meeting's transcript, summary and metadata. One question is answered at a
time.

Commands:
  /search <text>          Show only messages containing text (/search alone closes it)
  /export md|txt [path]   Export the conversation (stdout when no path is given)
  /history                Show the conversation grouped by day
  /reset                  Clear the conversation, including an answer in progress
  /help                   Show this list
  /quit                   Leave the chat

With --archive, the conversation is saved to the PostgreSQL archive when the
chat ends. See 'meetchat archive list'.

Examples:
  meetchat chat --file standup.json
  meetchat chat --db --meeting m-42 --archive --label standup
  echo "What did we decide about the launch?" | meetchat chat --file standup.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			logger := newLogger(cfg)
			ctx := cmd.Context()

			m, err := deps.OpenMeeting(ctx, cfg, src, logger)
			if err != nil {
				return err
			}
			defer m.Close()

			var archiver Archiver
			if archiveIt {
				if archiver, err = deps.OpenArchive(cfg); err != nil {
					return fmt.Errorf("opening archive: %w", err)
				}
				defer archiver.Close()
			}

			engine, err := deps.NewEngine(ctx, cfg, m, logger)
			if err != nil {
				return err
			}
			defer engine.Close()

			if cfg.Metrics.Addr != "" {
				stop, err := startMetricsServer(cfg.Metrics.Addr, engine.Registry, logger)
				if err != nil {
					return err
				}
				defer stop()
			}

			model, err := deps.NewModel(cfg)
			if err != nil {
				return err
			}
			runner, err := orchestrator.NewRunner(orchestrator.RunnerConfig{
				Model:    model,
				MaxSteps: cfg.OpenAI.MaxSteps,
				Logger:   logger,
				Metrics:  engine.Metrics,
				Tracer:   engine.Tracer,
			})
			if err != nil {
				return err
			}

			r := &chatREPL{
				session: session.New(session.Config{
					Title:   m.Meeting.Title,
					Date:    m.Meeting.Date,
					Logger:  logger,
					Metrics: engine.Metrics,
				}),
				runner:    runner,
				toolbox:   engine.Dispatcher.Bind(m.Meeting.ID),
				out:       cmd.OutOrStdout(),
				timeout:   cfg.Timeout,
				showTools: showTools,
				logger:    logger,
			}
			in := cmd.InOrStdin()
			if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
				r.interactive = true
				r.width = terminalWidth(f)
			}

			r.banner(m.Meeting)
			runErr := r.run(ctx, in)

			if archiver != nil {
				// The chat context may already be cancelled by an interrupt.
				saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := r.archive(saveCtx, archiver, m.Meeting.ID, m.Meeting.Title, labels); err != nil {
					return errors.Join(runErr, err)
				}
			}
			return runErr
		},
	}

	src.bindFlags(cmd)
	cmd.Flags().BoolVar(&showTools, "show-tools", false, "Show tool calls and their results in answers")
	cmd.Flags().BoolVar(&archiveIt, "archive", false, "Save the conversation to the archive when the chat ends")
	cmd.Flags().StringSliceVar(&labels, "label", nil, "Label for the archived conversation (repeatable)")
	return cmd
}

func terminalWidth(f *os.File) int {
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

var (
	userLabelStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	assistantLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
	dimStyle            = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

// chatREPL drives a session from line-based input.
type chatREPL struct {
	session *session.Session
	runner  *orchestrator.Runner
	toolbox *tools.Toolbox
	out     io.Writer
	logger  logging.Logger

	timeout     time.Duration
	showTools   bool
	interactive bool
	width       int
}

func (r *chatREPL) banner(m *meeting.Meeting) {
	if !r.interactive {
		return
	}
	title := m.Title
	if title == "" {
		title = m.ID
	}
	fmt.Fprintf(r.out, "Chatting about %s", lipgloss.NewStyle().Bold(true).Render(title))
	if m.Date != "" {
		fmt.Fprintf(r.out, " (%s)", m.Date)
	}
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, dimStyle.Render("Type /help for commands, /quit to leave."))
}

// run reads lines until /quit, end of input or ctx is done.
func (r *chatREPL) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		if r.interactive {
			fmt.Fprint(r.out, userLabelStyle.Render("you> "))
		}
		if !scanner.Scan() {
			break
		}
		quit, err := r.handle(ctx, scanner.Text())
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
	return scanner.Err()
}

// handle processes one input line. It returns true when the chat should end.
func (r *chatREPL) handle(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		r.ask(ctx, line)
		return false, nil
	}

	command, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(command) {
	case "/quit", "/exit", "/q":
		return true, nil
	case "/reset", "/clear":
		r.session.Reset()
		fmt.Fprintln(r.out, "Conversation cleared.")
	case "/search":
		r.search(arg)
	case "/export":
		r.export(arg)
	case "/history":
		r.history()
	case "/help":
		fmt.Fprintln(r.out, "/search <text>, /export md|txt [path], /history, /reset, /quit")
	default:
		fmt.Fprintf(r.out, "Unknown command %s. Type /help for commands.\n", command)
	}
	return false, nil
}

// ask runs one assistant turn and prints the answer.
func (r *chatREPL) ask(ctx context.Context, text string) {
	turnCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if r.interactive {
		fmt.Fprintln(r.out, dimStyle.Render("thinking..."))
	}
	err := r.runner.RunTurn(turnCtx, r.session, r.toolbox, text)
	switch {
	case errors.Is(err, session.ErrEmptyInput):
		return
	case errors.Is(err, session.ErrBusy):
		fmt.Fprintln(r.out, "Please wait for the current answer to finish.")
		return
	case errors.Is(err, session.ErrStaleTurn):
		return
	case err != nil:
		r.logger.Warn("Turn failed", logging.Err(err), logging.F("turn", r.session.Turn()))
	}

	msgs := r.session.Messages()
	if len(msgs) == 0 {
		return
	}
	last := msgs[len(msgs)-1]
	if last.Role != chat.RoleAssistant {
		return
	}
	r.printMessage(last, "")
}

func (r *chatREPL) printMessage(m *chat.Message, query string) {
	label := userLabelStyle.Render(m.Role.Label())
	if m.Role == chat.RoleAssistant {
		label = assistantLabelStyle.Render(m.Role.Label())
	}
	body := chat.Render(m, r.showTools)
	if query != "" {
		body = transcript.HighlightWith(body, query, highlightMatch)
	}
	fmt.Fprintf(r.out, "%s: %s\n", label, body)
	if r.interactive {
		fmt.Fprintln(r.out, dimStyle.Render(strings.Repeat("─", min(r.width, 60))))
	}
}

// search filters the conversation, or closes the filter when q is empty.
func (r *chatREPL) search(q string) {
	if q == "" {
		r.session.HideSearch()
		fmt.Fprintln(r.out, "Search closed.")
		return
	}
	r.session.ShowSearch()
	r.session.SetQuery(q)

	visible := r.session.Visible()
	if len(visible) == 0 {
		fmt.Fprintf(r.out, "No messages contain %q.\n", q)
		return
	}
	for _, m := range visible {
		r.printMessage(m, q)
	}
	fmt.Fprintf(r.out, "%d messages contain %q.\n", len(visible), q)
}

// export writes the conversation as md or txt to a path, or to the output.
func (r *chatREPL) export(arg string) {
	formatName, path, _ := strings.Cut(arg, " ")
	path = strings.TrimSpace(path)
	if formatName == "" {
		formatName = string(transcript.FormatMarkdown)
	}

	format, err := transcript.ParseFormat(formatName)
	if err == nil {
		var body string
		body, err = r.session.Export(format)
		if err == nil {
			if path == "" {
				_, err = io.WriteString(r.out, body)
			} else if err = os.WriteFile(path, []byte(body), 0644); err == nil {
				fmt.Fprintf(r.out, "Exported conversation to %s\n", path)
			}
		}
	}
	if err != nil {
		fmt.Fprintf(r.out, "Export failed: %v\n", err)
	}
}

// history prints the conversation grouped by day.
func (r *chatREPL) history() {
	msgs := r.session.Messages()
	if len(msgs) == 0 {
		fmt.Fprintln(r.out, "No messages yet.")
		return
	}
	for _, g := range chat.GroupByDay(msgs, time.Now()) {
		fmt.Fprintln(r.out, dimStyle.Render("-- "+g.Label+" --"))
		for _, m := range g.Messages {
			r.printMessage(m, "")
		}
	}
}

// archive saves the conversation as markdown. Empty conversations are skipped.
func (r *chatREPL) archive(ctx context.Context, a Archiver, meetingID, title string, labels []string) error {
	turns := 0
	for _, m := range r.session.Messages() {
		if m.Role == chat.RoleUser {
			turns++
		}
	}
	if turns == 0 {
		return nil
	}

	body, err := r.session.Export(transcript.FormatMarkdown)
	if err != nil {
		return err
	}
	entry, err := a.Save(ctx, meetingID, title, transcript.FormatMarkdown, body,
		archive.WithLabels(labels...),
		archive.WithTurnCount(turns))
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Archived conversation #%d (%d turns)\n", entry.ID, turns)
	return nil
}
