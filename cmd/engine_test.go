package cmd

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/meetchat/pkg/buildinfo"
)

func TestNewEngine_LocalOnly(t *testing.T) {
	ctx := context.Background()
	logger := testLogger()

	m, err := openMeeting(ctx, mockConfig(), MeetingSource{File: writeBundle(t)}, logger)
	require.NoError(t, err)
	defer m.Close()

	e, err := newEngine(ctx, mockConfig(), m, logger)
	require.NoError(t, err)
	defer e.Close()

	require.NotNil(t, e.Dispatcher)
	res := e.Dispatcher.Bind("m-42").Call(ctx, "analyzeMeetingSentiment", "{}")
	assert.True(t, res.Success, res.Text)

	// Image generation is disabled without the analysis service.
	res = e.Dispatcher.Bind("m-42").Call(ctx, "generateImage", `{"description":"a launch party"}`)
	assert.False(t, res.Success)
}

func TestNewEngine_UnreachableAnalysisFallsBack(t *testing.T) {
	ctx := context.Background()
	logger := testLogger()
	cfg := mockConfig()
	cfg.Analysis.Address = "127.0.0.1:1"

	m, err := openMeeting(ctx, cfg, MeetingSource{File: writeBundle(t)}, logger)
	require.NoError(t, err)

	dialCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	e, err := newEngine(dialCtx, cfg, m, logger)
	require.NoError(t, err)
	defer e.Close()

	res := e.Dispatcher.Bind("m-42").Call(ctx, "analyzeMeetingSentiment", "{}")
	assert.True(t, res.Success, res.Text)
}

func TestMetricsMux(t *testing.T) {
	ctx := context.Background()
	logger := testLogger()

	m, err := openMeeting(ctx, mockConfig(), MeetingSource{File: writeBundle(t)}, logger)
	require.NoError(t, err)
	e, err := newEngine(ctx, mockConfig(), m, logger)
	require.NoError(t, err)
	defer e.Close()

	e.Dispatcher.Bind("m-42").Call(ctx, "getMeetingMetadata", "{}")

	srv := httptest.NewServer(metricsMux(e.Registry))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "go_goroutines"))
	assert.Contains(t, string(body), "getMeetingMetadata")

	resp, err = http.Get(srv.URL + "/version")
	require.NoError(t, err)
	defer resp.Body.Close()
	var info buildinfo.Info
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.Equal(t, "meetchat", info.ServiceName)
}

func TestStartMetricsServer(t *testing.T) {
	ctx := context.Background()
	logger := testLogger()

	m, err := openMeeting(ctx, mockConfig(), MeetingSource{File: writeBundle(t)}, logger)
	require.NoError(t, err)
	e, err := newEngine(ctx, mockConfig(), m, logger)
	require.NoError(t, err)
	defer e.Close()

	stop, err := startMetricsServer("127.0.0.1:0", e.Registry, logger)
	require.NoError(t, err)
	stop()

	_, err = startMetricsServer("not-an-address", e.Registry, logger)
	assert.Error(t, err)
}
