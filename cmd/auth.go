package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/otherjamesbrown/meetchat/credentials"
)

// minAPIKeyLength rejects obviously truncated keys.
const minAPIKeyLength = 10

// AuthCommandDeps holds the dependencies for auth commands.
type AuthCommandDeps struct {
	OpenStore func() (*credentials.Store, error)
	// ReadSecret prompts for a key without echoing it.
	ReadSecret func(prompt string) (string, error)
}

// DefaultAuthDeps returns the default dependencies for production use.
func DefaultAuthDeps() *AuthCommandDeps {
	return &AuthCommandDeps{
		OpenStore:  credentials.NewStore,
		ReadSecret: readSecret,
	}
}

// readSecret reads a line from stdin, hiding input on a terminal.
func readSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading key: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading key: %w", err)
	}
	return line, nil
}

// validateAPIKey checks a key before it is stored.
func validateAPIKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("API key is empty")
	}
	if len(key) < minAPIKeyLength {
		return fmt.Errorf("API key is too short (minimum %d characters)", minAPIKeyLength)
	}
	if strings.ContainsAny(key, " \t\n") {
		return fmt.Errorf("API key contains whitespace")
	}
	return nil
}

// NewAuthCommand creates the auth command with all subcommands.
func NewAuthCommand(deps *AuthCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultAuthDeps()
	}

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage model provider API keys",
		Long: `Manage the API keys meetchat uses to reach model providers.

Keys are stored encrypted in ~/.meetchat/credentials.yaml. The encryption key
comes from MEETCHAT_ENCRYPTION_KEY, the system keyring, or a passphrase in
MEETCHAT_PASSPHRASE, in that order.

MEETCHAT_<PROVIDER>_API_KEY (for example MEETCHAT_OPENAI_API_KEY) takes
precedence over a stored key.

Examples:
  meetchat auth set-key openai
  meetchat auth status
  meetchat auth delete openai`,
	}

	cmd.AddCommand(newAuthSetKeyCommand(deps))
	cmd.AddCommand(newAuthStatusCommand(deps))
	cmd.AddCommand(newAuthDeleteCommand(deps))

	return cmd
}

func newAuthSetKeyCommand(deps *AuthCommandDeps) *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "set-key <provider>",
		Short: "Store an API key",
		Long: `Store the API key for a provider, replacing any previous key. Without --key
the key is read from stdin (hidden on a terminal).

Examples:
  meetchat auth set-key openai
  meetchat auth set-key openai --key sk-...
  echo "$KEY" | meetchat auth set-key openai`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := args[0]
			if key == "" {
				var err error
				key, err = deps.ReadSecret(fmt.Sprintf("%s API key: ", provider))
				if err != nil {
					return err
				}
			}
			key = strings.TrimSpace(key)
			if err := validateAPIKey(key); err != nil {
				return err
			}

			store, err := deps.OpenStore()
			if err != nil {
				return fmt.Errorf("initializing credential store: %w", err)
			}
			if err := store.SetKey(provider, key); err != nil {
				return fmt.Errorf("saving key: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s key %s (id %s)\n",
				strings.ToLower(provider), credentials.MaskAPIKey(key), credentials.KeyID(key))
			return nil
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "API key (prompted when omitted)")
	return cmd
}

// keyStatus is one provider line of auth status.
type keyStatus struct {
	Provider string
	Source   string
	Masked   string
	KeyID    string
}

func newAuthStatusCommand(deps *AuthCommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which API keys are available",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			store, err := deps.OpenStore()
			if err != nil {
				return fmt.Errorf("initializing credential store: %w", err)
			}

			providers, err := store.Providers()
			if err != nil {
				return err
			}
			if !slices.Contains(providers, credentials.ProviderOpenAI) {
				providers = append([]string{credentials.ProviderOpenAI}, providers...)
			}

			fmt.Fprintf(out, "Encryption: %s\n\n", store.KeyProviderDescription())
			for _, st := range collectKeyStatus(store, providers) {
				if st.Source == "" {
					fmt.Fprintf(out, "  %-14s not configured (run 'meetchat auth set-key %s')\n", st.Provider, st.Provider)
					continue
				}
				fmt.Fprintf(out, "  %-14s %s  id %s  from %s\n", st.Provider, st.Masked, st.KeyID, st.Source)
			}
			return nil
		},
	}
}

func collectKeyStatus(store *credentials.Store, providers []string) []keyStatus {
	out := make([]keyStatus, 0, len(providers))
	for _, p := range providers {
		st := keyStatus{Provider: p}
		if key, source, err := store.Key(p); err == nil {
			st.Source = source
			st.Masked = credentials.MaskAPIKey(key)
			st.KeyID = credentials.KeyID(key)
		}
		out = append(out, st)
	}
	return out
}

func newAuthDeleteCommand(deps *AuthCommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <provider>",
		Aliases: []string{"rm"},
		Short:   "Remove a stored API key",
		Long: `Remove the stored key for a provider. Environment variables are not affected.

Examples:
  meetchat auth delete openai`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := deps.OpenStore()
			if err != nil {
				return fmt.Errorf("initializing credential store: %w", err)
			}
			if err := store.DeleteKey(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s key\n", strings.ToLower(args[0]))
			return nil
		},
	}
}
