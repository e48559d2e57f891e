package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"txhistory/internal/calls"
)

func main() {
	root := &cobra.Command{
		Use:          "historian",
		Short:        "Account history recorder for failed Substrate extrinsics",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Record history entries from decoded blocks",
		RunE:  runHistorian,
	}

	runCmd.Flags().String("in", "-", "input decoded blocks JSONL (- for stdin)")
	runCmd.Flags().String("errors", "./data/process_errors.jsonl", "process errors JSONL (empty disables)")
	runCmd.Flags().Uint64("from", 0, "first block to process (inclusive)")
	runCmd.Flags().Uint64("to", 0, "last block to process (inclusive), 0 means all")
	runCmd.Flags().String("store", "jsonl", "history store (jsonl, postgres, clickhouse)")
	runCmd.Flags().String("out", "./data/history.jsonl", "output JSONL path for the jsonl store")
	runCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	runCmd.Flags().String("clickhouse-dsn", "", "ClickHouse DSN")
	runCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	runCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	runCmd.Flags().String("checkpoint-backend", "file", "checkpoint backend (file, postgres)")
	runCmd.Flags().String("checkpoint-name", "history", "checkpoint row name for the postgres backend")
	runCmd.Flags().Int("max-retries", 5, "maximum retry attempts for store writes")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	runCmd.Flags().String("rpc", "", "Substrate RPC URL for fee estimation and chain properties")
	runCmd.Flags().Int("ss58-prefix", -1, "SS58 address prefix, -1 asks the node (42 without rpc)")
	runCmd.Flags().String("asset-table", "", "YAML multilocation to asset id table")
	runCmd.Flags().Int("max-depth", calls.DefaultMaxDepth, "maximum batch/proxy nesting depth")
	runCmd.Flags().Bool("legacy-double-save", false, "save the -from entry twice, as older recorders did")
	runCmd.Flags().String("metrics-addr", "", "Prometheus listen address, e.g. :9102 (empty disables)")
	addLogFlags(runCmd)

	root.AddCommand(runCmd)

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply storage schema migrations",
		RunE:  runMigrate,
	}

	migrateCmd.Flags().String("target", "postgres", "migration target (postgres, clickhouse)")
	migrateCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	migrateCmd.Flags().String("clickhouse-dsn", "", "ClickHouse DSN")
	migrateCmd.Flags().Int("down", 0, "roll back this many postgres migrations instead of applying")
	addLogFlags(migrateCmd)

	root.AddCommand(migrateCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addLogFlags(cmd *cobra.Command) {
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().String("log-file", "", "also write logs to this file, rotated")
	cmd.Flags().Int("log-max-age-days", 7, "days to keep rotated log files")
}

func newLogger(level, file string, maxAgeDays int) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	if file == "" {
		return logger, nil
	}

	rotator := &lumberjack.Logger{
		Filename: file,
		MaxSize:  100,
		MaxAge:   maxAgeDays,
		Compress: true,
	}
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(cfg.EncoderConfig), zapcore.AddSync(rotator), cfg.Level)
	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, fileCore)
	})), nil
}
