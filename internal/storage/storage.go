package storage

import (
	"context"

	"txhistory/internal/model"
)

// HistoryStore persists history entries. Save upserts by entry id, so saving
// the same entry twice leaves one record.
type HistoryStore interface {
	Save(ctx context.Context, entry *model.HistoryEntry) error
}

// BatchSaver is implemented by stores that write several entries in one
// round trip. Entries are applied in slice order.
type BatchSaver interface {
	SaveBatch(ctx context.Context, entries []*model.HistoryEntry) error
}

// StateStore persists the last processed block under a name.
type StateStore interface {
	LoadState(ctx context.Context, name string) (uint64, bool, error)
	SaveState(ctx context.Context, name string, block uint64) error
}
