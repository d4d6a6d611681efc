package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/meetchat/config"
	"github.com/otherjamesbrown/meetchat/pkg/tools"
)

func createToolsTestDeps(cfg *config.CLIConfig) *ToolsCommandDeps {
	return &ToolsCommandDeps{
		LoadConfig: func() (*config.CLIConfig, error) {
			return cfg, nil
		},
		OpenMeeting: openMeeting,
		NewEngine:   newEngine,
	}
}

func runTools(t *testing.T, deps *ToolsCommandDeps, args ...string) (string, error) {
	t.Helper()
	cmd := NewToolsCommand(deps)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestNewToolsCommand(t *testing.T) {
	cmd := NewToolsCommand(createToolsTestDeps(mockConfig()))

	assert.Equal(t, "tools", cmd.Use)

	call, _, err := cmd.Find([]string{"call"})
	require.NoError(t, err)
	assert.Equal(t, "{}", call.Flags().Lookup("args").DefValue)
	assert.NotNil(t, call.Flags().Lookup("file"))

	list, _, err := cmd.Find([]string{"list"})
	require.NoError(t, err)
	assert.NotNil(t, list.Flags().Lookup("output"))
}

func TestToolsList_JSON(t *testing.T) {
	out, err := runTools(t, createToolsTestDeps(mockConfig()), "list", "-o", "json")
	require.NoError(t, err)

	var views []toolView
	require.NoError(t, json.Unmarshal([]byte(out), &views))

	names := make([]string, len(views))
	for i, v := range views {
		names[i] = v.Name
	}
	assert.Len(t, views, 12)
	assert.Contains(t, names, "searchTranscript")
	assert.Contains(t, names, "generateImage")
	assert.Contains(t, names, "listGeneratedImages")

	for _, v := range views {
		assert.NotEmpty(t, v.Description, v.Name)
		assert.Equal(t, "object", v.Parameters["type"], v.Name)
	}
}

func TestToolsList_Text(t *testing.T) {
	out, err := runTools(t, createToolsTestDeps(mockConfig()), "list")
	require.NoError(t, err)

	assert.Contains(t, out, "searchTranscript")
	assert.Contains(t, out, "args: query*")
}

func TestParamNames(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"topic":       map[string]any{"type": "string"},
			"prompt":      map[string]any{"type": "string"},
			"participant": map[string]any{"type": "string"},
		},
		"required": []any{"prompt"},
	}
	assert.Equal(t, "participant, prompt*, topic", paramNames(schema))
	assert.Equal(t, "", paramNames(map[string]any{"type": "object"}))
}

func TestToolsCall_SearchTranscript(t *testing.T) {
	out, err := runTools(t, createToolsTestDeps(mockConfig()),
		"call", "searchTranscript", "--args", `{"query":"budget"}`, "--file", writeBundle(t), "-o", "json")
	require.NoError(t, err)

	var res tools.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Success)
	assert.Equal(t, "searchTranscript", res.Tool)
	assert.Contains(t, res.Text, "[0:00] Alice: The budget is approved.")
}

func TestToolsCall_RepairsArguments(t *testing.T) {
	out, err := runTools(t, createToolsTestDeps(mockConfig()),
		"call", "searchTranscript", "--args", `{query: 'launch'`, "--file", writeBundle(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Launch slips a week.")
}

func TestToolsCall_FailuresAreAnswers(t *testing.T) {
	deps := createToolsTestDeps(mockConfig())
	bundle := writeBundle(t)

	out, err := runTools(t, deps, "call", "searchTranscript", "--args", `{"query":"   "}`, "--file", bundle, "-o", "json")
	require.NoError(t, err)
	var res tools.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Failure)

	out, err = runTools(t, deps, "call", "summarizeEverything", "--file", bundle, "-o", "json")
	require.NoError(t, err)
	res = tools.Result{}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.Success)
}

func TestToolsCall_RequiresMeeting(t *testing.T) {
	_, err := runTools(t, createToolsTestDeps(mockConfig()), "call", "getMeetingSummary")
	assert.Error(t, err)
}
