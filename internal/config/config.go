package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"txhistory/internal/calls"
)

const envPrefix = "HISTORIAN"

// Store backends.
const (
	StoreJSONL      = "jsonl"
	StorePostgres   = "postgres"
	StoreClickhouse = "clickhouse"
)

// Checkpoint backends.
const (
	CheckpointFile     = "file"
	CheckpointPostgres = "postgres"
)

// Config holds configuration values for the run command, loaded from flags,
// env, or config file.
type Config struct {
	In     string
	Errors string
	From   uint64
	To     uint64

	Store         string
	Out           string
	PgDSN         string
	ClickhouseDSN string

	Checkpoint        string
	CheckpointEnabled bool
	CheckpointBackend string
	CheckpointName    string

	MaxRetries   int
	RetryBackoff time.Duration

	RPCURL           string
	SS58Prefix       int
	AssetTable       string
	MaxDepth         int
	LegacyDoubleSave bool

	MetricsAddr   string
	LogLevel      string
	LogFile       string
	LogMaxAgeDays int
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("in", "-")
		v.SetDefault("errors", "./data/process_errors.jsonl")
		v.SetDefault("store", StoreJSONL)
		v.SetDefault("out", "./data/history.jsonl")
		v.SetDefault("checkpoint", "./data/checkpoint.json")
		v.SetDefault("checkpoint-enabled", true)
		v.SetDefault("checkpoint-backend", CheckpointFile)
		v.SetDefault("checkpoint-name", "history")
		v.SetDefault("max-retries", 5)
		v.SetDefault("retry-backoff", 500*time.Millisecond)
		v.SetDefault("ss58-prefix", -1)
		v.SetDefault("max-depth", calls.DefaultMaxDepth)
		v.SetDefault("legacy-double-save", false)
		v.SetDefault("log-level", "info")
		v.SetDefault("log-max-age-days", 7)
	})
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		In:                v.GetString("in"),
		Errors:            v.GetString("errors"),
		From:              v.GetUint64("from"),
		To:                v.GetUint64("to"),
		Store:             strings.ToLower(v.GetString("store")),
		Out:               v.GetString("out"),
		PgDSN:             v.GetString("pg-dsn"),
		ClickhouseDSN:     v.GetString("clickhouse-dsn"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		CheckpointBackend: strings.ToLower(v.GetString("checkpoint-backend")),
		CheckpointName:    v.GetString("checkpoint-name"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		RPCURL:            v.GetString("rpc"),
		SS58Prefix:        v.GetInt("ss58-prefix"),
		AssetTable:        v.GetString("asset-table"),
		MaxDepth:          v.GetInt("max-depth"),
		LegacyDoubleSave:  v.GetBool("legacy-double-save"),
		MetricsAddr:       v.GetString("metrics-addr"),
		LogLevel:          v.GetString("log-level"),
		LogFile:           v.GetString("log-file"),
		LogMaxAgeDays:     v.GetInt("log-max-age-days"),
	}

	return cfg, nil
}

// Validate checks option combinations that flags alone cannot express.
func (c Config) Validate() error {
	if c.In == "" {
		return fmt.Errorf("input path is required")
	}
	if c.To != 0 && c.To < c.From {
		return fmt.Errorf("to block must be >= from block")
	}
	switch c.Store {
	case StoreJSONL:
		if c.Out == "" {
			return fmt.Errorf("output path is required")
		}
	case StorePostgres:
		if c.PgDSN == "" {
			return fmt.Errorf("pg-dsn is required for store %s", c.Store)
		}
	case StoreClickhouse:
		if c.ClickhouseDSN == "" {
			return fmt.Errorf("clickhouse-dsn is required for store %s", c.Store)
		}
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	switch c.CheckpointBackend {
	case CheckpointFile:
	case CheckpointPostgres:
		if c.CheckpointEnabled && c.PgDSN == "" {
			return fmt.Errorf("pg-dsn is required for checkpoint backend %s", c.CheckpointBackend)
		}
	default:
		return fmt.Errorf("unknown checkpoint backend %q", c.CheckpointBackend)
	}
	if c.SS58Prefix > 16383 {
		return fmt.Errorf("ss58-prefix %d out of range", c.SS58Prefix)
	}
	if c.MaxDepth <= 0 {
		return fmt.Errorf("max-depth must be greater than zero")
	}
	return nil
}

// newViper loads .env, then layers defaults, flags, env and the config file.
func newViper(cfgFile string, flags *pflag.FlagSet, defaults func(v *viper.Viper)) (*viper.Viper, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	defaults(v)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}
