package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"txhistory/internal/fee"
	"txhistory/internal/metrics"
	"txhistory/internal/model"
)

// ExtrinsicHandler records the history of one extrinsic.
type ExtrinsicHandler interface {
	HandleExtrinsic(ctx context.Context, xc model.ExtrinsicContext) ([]*model.HistoryEntry, error)
}

// RunConfig holds runtime settings for the indexer.
type RunConfig struct {
	Range        BlockRange
	MaxRetries   int
	RetryBackoff time.Duration
}

// Runner feeds decoded blocks through the history handler, one extrinsic
// at a time, and checkpoints after every block.
type Runner struct {
	cfg        RunConfig
	source     BlockSource
	handler    ExtrinsicHandler
	checkpoint Checkpointer
	errWriter  *ErrorWriter
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// RunStats summarizes a run.
type RunStats struct {
	Blocks     int
	Skipped    int
	Extrinsics int
	Entries    int
	Failed     int
}

// NewRunner builds a Runner with its dependencies. checkpoint and errWriter
// may be nil.
func NewRunner(cfg RunConfig, source BlockSource, handler ExtrinsicHandler, checkpoint Checkpointer, errWriter *ErrorWriter, m *metrics.Metrics, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if checkpoint == nil {
		checkpoint = NewCheckpointStore("", false)
	}
	return &Runner{
		cfg:        cfg,
		source:     source,
		handler:    handler,
		checkpoint: checkpoint,
		errWriter:  errWriter,
		metrics:    m,
		logger:     logger,
	}
}

// Run executes the indexing loop until the source is drained, the range is
// exhausted or ctx is cancelled.
func (r *Runner) Run(ctx context.Context) (RunStats, error) {
	var stats RunStats
	if r.source == nil {
		return stats, fmt.Errorf("block source is nil")
	}
	if r.handler == nil {
		return stats, fmt.Errorf("history handler is nil")
	}

	blockRange := r.cfg.Range
	last, ok, err := r.checkpoint.Load(ctx)
	if err != nil {
		return stats, err
	}
	if ok {
		blockRange = blockRange.Resume(last)
		r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", last), zap.Uint64("from", blockRange.From))
	}
	if blockRange.Empty() {
		r.logger.Info("nothing to process", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
		return stats, nil
	}

	for {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		block, err := r.source.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, err
		}

		if blockRange.Past(block.Number) {
			break
		}
		if !blockRange.Contains(block.Number) {
			stats.Skipped++
			continue
		}

		if err := r.processBlock(ctx, block, &stats); err != nil {
			return stats, err
		}

		err = withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
			return r.checkpoint.Save(ctx, block.Number)
		})
		if err != nil {
			return stats, err
		}
		if err := r.errWriter.Flush(); err != nil {
			return stats, fmt.Errorf("flush errors: %w", err)
		}

		stats.Blocks++
		r.metrics.ObserveBlock(block.Number)
		r.logger.Debug("block complete", zap.Uint64("block", block.Number), zap.Int("extrinsics", len(block.Extrinsics)))
	}

	r.logger.Info("run complete",
		zap.Int("blocks", stats.Blocks),
		zap.Int("skipped", stats.Skipped),
		zap.Int("extrinsics", stats.Extrinsics),
		zap.Int("entries", stats.Entries),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}

func (r *Runner) processBlock(ctx context.Context, block *model.Block, stats *RunStats) error {
	for i := range block.Extrinsics {
		xc := model.NewExtrinsicContext(block, &block.Extrinsics[i])
		stats.Extrinsics++

		entries, err := r.handle(ctx, xc)
		if err == nil {
			stats.Entries += len(entries)
			continue
		}

		var storeErr *StoreError
		if errors.As(err, &storeErr) || ctx.Err() != nil {
			return fmt.Errorf("handle extrinsic %s: %w", xc.ExtrinsicID(), err)
		}
		reason, level, ok := classify(err)
		if !ok {
			return fmt.Errorf("handle extrinsic %s: %w", xc.ExtrinsicID(), err)
		}

		stats.Failed++
		r.metrics.ObserveError(reason)
		if ce := r.logger.Check(level, "extrinsic skipped"); ce != nil {
			ce.Write(
				zap.String("extrinsic", xc.ExtrinsicID()),
				zap.String("call", xc.Extrinsic.Method.Name()),
				zap.String("reason", reason),
				zap.Error(err),
			)
		}
		if err := r.errWriter.Write(buildProcessError(xc, err)); err != nil {
			return fmt.Errorf("write process error: %w", err)
		}
	}
	return nil
}

// handle runs the handler, retrying while the node fee query is failing.
// Fees are resolved before any entry is saved, so a retry never repeats a
// save.
func (r *Runner) handle(ctx context.Context, xc model.ExtrinsicContext) ([]*model.HistoryEntry, error) {
	var (
		entries []*model.HistoryEntry
		err     error
	)
	retryErr := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		entries, err = r.handler.HandleExtrinsic(ctx, xc)
		if errors.Is(err, fee.ErrFeeUnavailable) {
			r.logger.Warn("fee query failed", zap.String("extrinsic", xc.ExtrinsicID()), zap.Error(err))
			return err
		}
		return nil
	})
	if retryErr != nil {
		return nil, retryErr
	}
	return entries, err
}
