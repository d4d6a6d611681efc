//go:build integration

package archive

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/meetchat/pkg/db"
	mcerrors "github.com/otherjamesbrown/meetchat/pkg/errors"
	"github.com/otherjamesbrown/meetchat/pkg/transcript"
)

// setupIntegrationClient connects to MEETCHAT_TEST_DB_URL and applies the
// bundled migrations.
func setupIntegrationClient(t *testing.T) *Client {
	t.Helper()

	dsn := os.Getenv("MEETCHAT_TEST_DB_URL")
	if dsn == "" {
		t.Skip("MEETCHAT_TEST_DB_URL not set")
	}

	ctx := context.Background()
	cfg := db.DefaultConfig()
	cfg.ApplyEnv()
	pool, err := db.Connect(ctx, cfg)
	require.NoError(t, err)
	_, err = db.Migrate(ctx, pool)
	require.NoError(t, err)
	pool.Close()

	c, err := Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Ping(ctx))
	return c
}

func TestArchive_Lifecycle(t *testing.T) {
	c := setupIntegrationClient(t)
	ctx := context.Background()

	e, err := c.Save(ctx, "it-meeting", "Planning", transcript.FormatMarkdown,
		"# Meeting Chat: Planning\n\nThe budget is approved.",
		WithLabels("Budget", "planning"), WithTurnCount(2))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Delete(ctx, e.ID) })

	assert.NotZero(t, e.ID)
	assert.False(t, e.CreatedAt.IsZero())

	got, err := c.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"budget", "planning"}, got.Labels)
	assert.Equal(t, 2, got.TurnCount)

	require.NoError(t, c.AddLabels(ctx, e.ID, "approved", "budget"))
	got, err = c.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"approved", "budget", "planning"}, got.Labels)

	list, err := c.List(ctx, ListOptions{MeetingID: "it-meeting", Labels: []string{"approved"}, Query: "BUDGET"})
	require.NoError(t, err)
	require.NotEmpty(t, list)
	assert.Equal(t, e.ID, list[0].ID)

	require.NoError(t, c.Delete(ctx, e.ID))
	_, err = c.Get(ctx, e.ID)
	assert.True(t, mcerrors.IsNotFound(err))
	assert.True(t, mcerrors.IsNotFound(c.Delete(ctx, e.ID)))
}
