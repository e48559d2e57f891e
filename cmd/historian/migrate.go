package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"txhistory/internal/config"
	chstore "txhistory/internal/storage/clickhouse"
	"txhistory/internal/storage/migrations"
)

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadMigrate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFile, cfg.LogMaxAgeDays)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("migrate start", zap.String("target", cfg.Target), zap.Int("down", cfg.Down))

	switch cfg.Target {
	case config.StorePostgres:
		if cfg.Down > 0 {
			return migrations.DownPostgres(cfg.PgDSN, cfg.Down, logger)
		}
		return migrations.RunPostgres(cfg.PgDSN, logger)
	case config.StoreClickhouse:
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		conn, err := chstore.NewConn(ctx, cfg.ClickhouseDSN)
		if err != nil {
			return err
		}
		defer conn.Close()
		return migrations.RunClickhouse(ctx, conn)
	default:
		return fmt.Errorf("unknown migrate target %q", cfg.Target)
	}
}
