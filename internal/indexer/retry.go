package indexer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"txhistory/internal/model"
	"txhistory/internal/storage"
)

func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}

// StoreError is returned once a save has exhausted its retries. It aborts
// the run.
type StoreError struct {
	ID  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store entry %s: %v", e.ID, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// RetryingStore retries failed saves with exponential backoff.
type RetryingStore struct {
	inner      storage.HistoryStore
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

func NewRetryingStore(inner storage.HistoryStore, maxRetries int, backoff time.Duration, logger *zap.Logger) *RetryingStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryingStore{inner: inner, maxRetries: maxRetries, backoff: backoff, logger: logger}
}

var (
	_ storage.HistoryStore = (*RetryingStore)(nil)
	_ storage.BatchSaver   = (*RetryingStore)(nil)
)

func (s *RetryingStore) Save(ctx context.Context, entry *model.HistoryEntry) error {
	err := withRetry(ctx, s.maxRetries, s.backoff, func(ctx context.Context) error {
		err := s.inner.Save(ctx, entry)
		if err != nil {
			s.logger.Warn("save entry failed", zap.Error(err), zap.String("id", entry.ID))
		}
		return err
	})
	if err != nil {
		return &StoreError{ID: entry.ID, Err: err}
	}
	return nil
}

// SaveBatch retries the whole batch when the inner store supports batches,
// and otherwise saves entries one by one.
func (s *RetryingStore) SaveBatch(ctx context.Context, entries []*model.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batcher, ok := s.inner.(storage.BatchSaver)
	if !ok {
		for _, entry := range entries {
			if err := s.Save(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	}

	err := withRetry(ctx, s.maxRetries, s.backoff, func(ctx context.Context) error {
		err := batcher.SaveBatch(ctx, entries)
		if err != nil {
			s.logger.Warn("save batch failed", zap.Error(err), zap.String("first_id", entries[0].ID), zap.Int("entries", len(entries)))
		}
		return err
	})
	if err != nil {
		return &StoreError{ID: entries[0].ID, Err: err}
	}
	return nil
}
