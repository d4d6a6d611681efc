package db

import (
	"context"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, "meetchat", cfg.Database)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_ApplyEnv(t *testing.T) {
	t.Setenv("MEETCHAT_DB_HOST", "db.internal")
	t.Setenv("MEETCHAT_DB_PORT", "6432")
	t.Setenv("MEETCHAT_DB_PASSWORD", "p@ss word")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, 6432, cfg.Port)
	assert.Contains(t, cfg.ConnectionString(), "p%40ss+word@db.internal:6432/meetchat")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"missing host", func(c *Config) { c.Host = "" }, "host"},
		{"bad port", func(c *Config) { c.Port = 70000 }, "port"},
		{"missing database", func(c *Config) { c.Database = "" }, "name"},
		{"missing user", func(c *Config) { c.User = "" }, "user"},
		{"conns", func(c *Config) { c.MaxConns = 1; c.MinConns = 2 }, "max connections"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

func TestCheck_NilPool(t *testing.T) {
	status := Check(context.Background(), nil)
	assert.False(t, status.Healthy)
	assert.Error(t, status.Error)
}

func TestMigrate_NilPool(t *testing.T) {
	_, err := Migrate(context.Background(), nil)
	assert.EqualError(t, err, "pool is nil")
}

func TestStatus_NilPool(t *testing.T) {
	_, err := Status(context.Background(), nil)
	assert.EqualError(t, err, "pool is nil")
}

func TestSplitMigrations(t *testing.T) {
	migrations := []Migration{{Version: "001_a"}, {Version: "002_b"}, {Version: "003_c"}}

	status := splitMigrations(migrations, map[string]bool{"001_a": true, "003_c": true})
	assert.Equal(t, []string{"001_a", "003_c"}, status.Applied)
	assert.Equal(t, []string{"002_b"}, status.Pending)

	status = splitMigrations(migrations, nil)
	assert.Empty(t, status.Applied)
	assert.Len(t, status.Pending, 3)
}

func TestMigrations_Embedded(t *testing.T) {
	migrations, err := Migrations()
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, "001_meetings", migrations[0].Version)
	assert.Contains(t, migrations[0].SQL, "CREATE TABLE IF NOT EXISTS meetings")
	assert.Equal(t, "002_conversation_archive", migrations[1].Version)
}

func TestLoadMigrations_OrderAndFilter(t *testing.T) {
	fsys := fstest.MapFS{
		"002_b.sql":    {Data: []byte("SELECT 2;")},
		"001_a.SQL":    {Data: []byte("SELECT 1;")},
		"README.md":    {Data: []byte("docs")},
		"nested/x.sql": {Data: []byte("SELECT 3;")},
	}

	migrations, err := loadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, "001_a", migrations[0].Version)
	assert.Equal(t, "002_b", migrations[1].Version)

	_, err = loadMigrations(fstest.MapFS{"003_empty.sql": {Data: []byte("  \n")}})
	assert.Error(t, err)
}

func TestNormalizeVersion(t *testing.T) {
	assert.Equal(t, "001_test", normalizeVersion("001_test.sql"))
	assert.Equal(t, "002_test", normalizeVersion("002_test.SQL"))
	assert.Equal(t, "003_test", normalizeVersion("003_test"))
	assert.Equal(t, ".sql", normalizeVersion(".sql"))
}

func TestPoolStatsCollector_NilPool(t *testing.T) {
	collector := NewPoolStatsCollector(nil, "meetchat")

	ch := make(chan *prometheus.Desc, 10)
	collector.Describe(ch)
	close(ch)

	var names []string
	for d := range ch {
		names = append(names, d.String())
	}
	require.Len(t, names, 4)
	assert.True(t, strings.Contains(names[0], "meetchat_db_pool_total_conns"))

	assert.Equal(t, 0, testutil.CollectAndCount(collector))
}

func TestRegisterPoolStats_Duplicate(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterPoolStats(reg, nil, "meetchat"))
	assert.NoError(t, RegisterPoolStats(reg, nil, "meetchat"))
}
