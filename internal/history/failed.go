package history

import (
	"context"
	"fmt"

	"txhistory/internal/model"
	"txhistory/internal/storage"
)

// Materializer turns normalized units into -from/-to history entries.
type Materializer struct {
	store            storage.HistoryStore
	legacyDoubleSave bool
	observe          func(kind string)
}

// NewMaterializer returns a Materializer saving through store. With
// legacyDoubleSave the -from entry of a two-sided unit is written twice.
func NewMaterializer(store storage.HistoryStore, legacyDoubleSave bool) *Materializer {
	return &Materializer{store: store, legacyDoubleSave: legacyDoubleSave}
}

// Materialize saves the entries of every unit and returns them in save
// order: -to before -from. A plain transfer-all back to the sender yields
// only the -from entry. Stores implementing storage.BatchSaver receive all
// writes of the extrinsic in one batch.
func (m *Materializer) Materialize(ctx context.Context, units []model.NormalizedUnit, xc model.ExtrinsicContext) ([]*model.HistoryEntry, error) {
	entries := make([]*model.HistoryEntry, 0, 2*len(units))
	writes := make([]*model.HistoryEntry, 0, 3*len(units))
	for _, unit := range units {
		if unit.Transfer == nil {
			continue
		}
		sender, receiver := unit.Transfer.Sender(), unit.Transfer.Receiver()
		isSwap := unit.Transfer.Kind() == model.KindSwap

		from := newEntry(xc, sender, model.SuffixFrom, "")
		from.Attach(unit.Transfer)

		if !(unit.IsTransferAll && !isSwap && sender == receiver) {
			to := newEntry(xc, receiver, model.SuffixTo, "")
			to.Attach(unit.Transfer)

			writes = append(writes, to)
			entries = append(entries, to)
			if m.legacyDoubleSave {
				writes = append(writes, from)
			}
		}

		writes = append(writes, from)
		entries = append(entries, from)
	}

	if err := m.saveAll(ctx, xc, writes); err != nil {
		return nil, err
	}
	return entries, nil
}

func (m *Materializer) saveAll(ctx context.Context, xc model.ExtrinsicContext, writes []*model.HistoryEntry) error {
	if len(writes) == 0 {
		return nil
	}
	batcher, ok := m.store.(storage.BatchSaver)
	if !ok {
		for _, entry := range writes {
			if err := m.save(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	}

	if err := batcher.SaveBatch(ctx, writes); err != nil {
		return fmt.Errorf("save batch %s: %w", xc.ExtrinsicID(), err)
	}
	for _, entry := range writes {
		m.observeEntry(entry)
	}
	return nil
}

func (m *Materializer) save(ctx context.Context, entry *model.HistoryEntry) error {
	if err := m.store.Save(ctx, entry); err != nil {
		return fmt.Errorf("save %s: %w", entry.ID, err)
	}
	m.observeEntry(entry)
	return nil
}

func (m *Materializer) observeEntry(entry *model.HistoryEntry) {
	if m.observe != nil {
		m.observe(entry.PayloadKind())
	}
}

// newEntry fills the header shared by every entry of the extrinsic. An empty
// hash keeps the extrinsic hash.
func newEntry(xc model.ExtrinsicContext, address, suffix, hash string) *model.HistoryEntry {
	if hash == "" {
		hash = xc.Extrinsic.Hash
	}
	return &model.HistoryEntry{
		ID:            xc.ExtrinsicID() + suffix,
		BlockNumber:   xc.Block.Number,
		Timestamp:     xc.Block.Timestamp,
		Address:       address,
		ExtrinsicHash: hash,
		ExtrinsicIdx:  xc.Extrinsic.Idx,
	}
}
