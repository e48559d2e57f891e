package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"txhistory/internal/address"
	"txhistory/internal/calls"
	"txhistory/internal/chain"
	"txhistory/internal/config"
	"txhistory/internal/fee"
	"txhistory/internal/history"
	"txhistory/internal/indexer"
	"txhistory/internal/metrics"
	"txhistory/internal/model"
	"txhistory/internal/multilocation"
	"txhistory/internal/storage"
	chstore "txhistory/internal/storage/clickhouse"
	"txhistory/internal/storage/postgres"
)

const defaultSS58Prefix = 42

func runHistorian(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.MetricsAddr, logger); err != nil {
				logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	var chainClient *chain.Client
	if cfg.RPCURL != "" {
		chainClient, err = chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()

		name, err := chainClient.ChainName(ctx)
		if err != nil {
			return err
		}
		logger.Info("connected to chain", zap.String("chain", name))
	}

	prefix, err := ss58Prefix(ctx, cfg.SS58Prefix, chainClient)
	if err != nil {
		return err
	}
	addresses := address.NewEncoder(prefix)

	var table multilocation.Table
	if cfg.AssetTable != "" {
		table, err = multilocation.LoadTable(cfg.AssetTable)
		if err != nil {
			return err
		}
	}
	locations := multilocation.NewResolver(table)

	var calculator fee.Calculator = fee.EventCalculator{Addresses: addresses}
	if chainClient != nil {
		calculator = fee.ChainCalculator{calculator, fee.RPCCalculator{Client: chainClient}}
	}

	normalizer, err := calls.NewNormalizer(calls.NormalizerConfig{
		Resolver:  locations,
		Addresses: addresses,
		MaxDepth:  cfg.MaxDepth,
		Logger:    logger.Named("calls"),
		OnSwapDropped: func(*model.Call, error) {
			m.ObserveSwapDropped()
		},
	})
	if err != nil {
		return err
	}

	stores, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer stores.close(logger)

	handler, err := history.NewHandler(history.Config{
		Store:            indexer.NewRetryingStore(stores.store, cfg.MaxRetries, cfg.RetryBackoff, logger),
		Fees:             fee.NewResolver(calculator, locations, logger.Named("fee")),
		Normalizer:       normalizer,
		Addresses:        addresses,
		LegacyDoubleSave: cfg.LegacyDoubleSave,
		Metrics:          m,
		Logger:           logger.Named("history"),
	})
	if err != nil {
		return err
	}

	var checkpoint indexer.Checkpointer = indexer.NewCheckpointStore(cfg.Checkpoint, cfg.CheckpointEnabled)
	if cfg.CheckpointEnabled && cfg.CheckpointBackend == config.CheckpointPostgres {
		checkpoint = indexer.StateCheckpoint{Store: stores.state, Name: cfg.CheckpointName}
	}

	source, err := indexer.OpenJSONLSource(cfg.In)
	if err != nil {
		return err
	}
	defer source.Close()

	var errWriter *indexer.ErrorWriter
	if cfg.Errors != "" {
		errWriter, err = indexer.NewErrorWriter(cfg.Errors, true)
		if err != nil {
			return err
		}
		defer errWriter.Close()
	}

	blockRange, err := indexer.NewBlockRange(cfg.From, cfg.To)
	if err != nil {
		return err
	}

	runner := indexer.NewRunner(indexer.RunConfig{
		Range:        blockRange,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, source, handler, checkpoint, errWriter, m, logger.Named("runner"))

	logger.Info("historian start",
		zap.String("in", cfg.In),
		zap.String("store", cfg.Store),
		zap.Uint64("from", cfg.From),
		zap.Uint64("to", cfg.To),
		zap.Uint16("ss58_prefix", prefix),
		zap.Int("assets", len(table)),
		zap.Int("max_depth", cfg.MaxDepth),
		zap.Bool("legacy_double_save", cfg.LegacyDoubleSave),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.String("checkpoint_backend", cfg.CheckpointBackend),
	)

	_, err = runner.Run(ctx)
	return err
}

func ss58Prefix(ctx context.Context, configured int, client *chain.Client) (uint16, error) {
	if configured >= 0 {
		return uint16(configured), nil
	}
	if client == nil {
		return defaultSS58Prefix, nil
	}
	return client.SS58Prefix(ctx)
}

// backend owns the store connections opened for a run.
type backend struct {
	store   storage.HistoryStore
	state   storage.StateStore
	closers []func() error
}

func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	b := &backend{}

	var pg *postgres.Store
	openPostgres := func() (*postgres.Store, error) {
		if pg != nil {
			return pg, nil
		}
		store, err := postgres.NewStore(ctx, cfg.PgDSN)
		if err != nil {
			return nil, err
		}
		pg = store
		b.closers = append(b.closers, func() error { store.Close(); return nil })
		return store, nil
	}

	switch cfg.Store {
	case config.StoreJSONL:
		store := storage.NewJSONLStore(cfg.Out)
		b.store = store
		b.closers = append(b.closers, store.Close)
	case config.StorePostgres:
		store, err := openPostgres()
		if err != nil {
			return nil, err
		}
		b.store = store
	case config.StoreClickhouse:
		conn, err := chstore.NewConn(ctx, cfg.ClickhouseDSN)
		if err != nil {
			return nil, err
		}
		b.store = chstore.NewHistoryStore(conn)
		b.closers = append(b.closers, conn.Close)
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}

	if cfg.CheckpointEnabled && cfg.CheckpointBackend == config.CheckpointPostgres {
		store, err := openPostgres()
		if err != nil {
			b.close(zap.NewNop())
			return nil, err
		}
		b.state = store
	}
	return b, nil
}

func (b *backend) close(logger *zap.Logger) {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			logger.Warn("close store", zap.Error(err))
		}
	}
}
