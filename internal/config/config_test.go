package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	flags.String("in", "-", "")
	flags.String("store", StoreJSONL, "")
	flags.String("pg-dsn", "", "")
	flags.Uint64("from", 0, "")
	flags.Bool("legacy-double-save", false, "")
	return flags
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "-", cfg.In)
	assert.Equal(t, StoreJSONL, cfg.Store)
	assert.Equal(t, "./data/history.jsonl", cfg.Out)
	assert.Equal(t, CheckpointFile, cfg.CheckpointBackend)
	assert.True(t, cfg.CheckpointEnabled)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryBackoff)
	assert.Equal(t, -1, cfg.SS58Prefix)
	assert.Equal(t, 32, cfg.MaxDepth)
	assert.False(t, cfg.LegacyDoubleSave)
	assert.Equal(t, 7, cfg.LogMaxAgeDays)
	require.NoError(t, cfg.Validate())
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "historian.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store: postgres\npg-dsn: postgres://file\nmax-depth: 8\nfrom: 5\n"), 0o644))

	t.Setenv("HISTORIAN_PG_DSN", "postgres://env")
	t.Setenv("HISTORIAN_SS58_PREFIX", "0")

	flags := runFlags()
	require.NoError(t, flags.Parse([]string{"--from", "100", "--legacy-double-save"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, "postgres://env", cfg.PgDSN)
	assert.Equal(t, 0, cfg.SS58Prefix)
	assert.Equal(t, 8, cfg.MaxDepth)
	assert.Equal(t, uint64(100), cfg.From)
	assert.True(t, cfg.LegacyDoubleSave)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingExplicitConfigFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base, err := Load("", nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "unknown store", mutate: func(c *Config) { c.Store = "sqlite" }},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Store = StorePostgres }},
		{name: "clickhouse without dsn", mutate: func(c *Config) { c.Store = StoreClickhouse }},
		{name: "postgres checkpoint without dsn", mutate: func(c *Config) { c.CheckpointBackend = CheckpointPostgres }},
		{name: "inverted range", mutate: func(c *Config) { c.From, c.To = 10, 5 }},
		{name: "prefix out of range", mutate: func(c *Config) { c.SS58Prefix = 20000 }},
		{name: "zero depth", mutate: func(c *Config) { c.MaxDepth = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadMigrate(t *testing.T) {
	t.Setenv("HISTORIAN_PG_DSN", "postgres://env")

	cfg, err := LoadMigrate("", nil)
	require.NoError(t, err)
	assert.Equal(t, StorePostgres, cfg.Target)
	assert.Equal(t, "postgres://env", cfg.PgDSN)
	require.NoError(t, cfg.Validate())

	cfg.Target = StoreClickhouse
	assert.Error(t, cfg.Validate())
	cfg.ClickhouseDSN = "clickhouse://localhost:9000/default"
	require.NoError(t, cfg.Validate())
	cfg.Down = 1
	assert.Error(t, cfg.Validate())
}
