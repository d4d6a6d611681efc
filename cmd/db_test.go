package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/meetchat/config"
)

var errNoDatabase = errors.New("connecting to database: connection refused")

func createDbTestDeps(cfg *config.CLIConfig) *DbCommandDeps {
	return &DbCommandDeps{
		LoadConfig: func() (*config.CLIConfig, error) {
			return cfg, nil
		},
		ConnectToDB: func(context.Context, *config.CLIConfig) (*pgxpool.Pool, error) {
			return nil, errNoDatabase
		},
	}
}

func TestNewDbCommand(t *testing.T) {
	cmd := NewDbCommand(createDbTestDeps(mockConfig()))

	assert.Equal(t, "db", cmd.Use)
	assert.Contains(t, cmd.Aliases, "database")

	migrate, _, err := cmd.Find([]string{"migrate"})
	require.NoError(t, err)
	assert.NotNil(t, migrate.Flags().Lookup("dry-run"))

	status, _, err := cmd.Find([]string{"status"})
	require.NoError(t, err)
	assert.NotNil(t, status.Flags().Lookup("output"))

	imp, _, err := cmd.Find([]string{"import"})
	require.NoError(t, err)
	assert.Equal(t, "import", imp.Name())
}

func TestNewDbCommand_WithNilDeps(t *testing.T) {
	cmd := NewDbCommand(nil)
	assert.Equal(t, "db", cmd.Use)
}

func TestDbCommands_ConnectionFailure(t *testing.T) {
	for _, args := range [][]string{
		{"migrate"},
		{"migrate", "--dry-run"},
		{"status"},
		{"import", "standup.json"},
	} {
		cmd := NewDbCommand(createDbTestDeps(mockConfig()))
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(args)

		err := cmd.ExecuteContext(context.Background())
		assert.ErrorIs(t, err, errNoDatabase, "db %v", args)
	}
}

func TestDbImport_RequiresFiles(t *testing.T) {
	cmd := NewDbCommand(createDbTestDeps(mockConfig()))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"import"})
	assert.Error(t, cmd.ExecuteContext(context.Background()))
}

func TestHealthLabel(t *testing.T) {
	assert.Equal(t, "healthy", healthLabel(true))
	assert.Equal(t, "unhealthy", healthLabel(false))
}
