package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"

	"txhistory/internal/model"
	"txhistory/internal/storage"
)

// HistoryStore writes history entries to a ReplacingMergeTree table; rows
// with the same (address, id) collapse to the latest insert.
type HistoryStore struct {
	conn *Conn
}

func NewHistoryStore(conn *Conn) *HistoryStore {
	return &HistoryStore{conn: conn}
}

var (
	_ storage.HistoryStore = (*HistoryStore)(nil)
	_ storage.BatchSaver   = (*HistoryStore)(nil)
)

func (s *HistoryStore) Save(ctx context.Context, entry *model.HistoryEntry) error {
	return s.SaveBatch(ctx, []*model.HistoryEntry{entry})
}

// SaveBatch inserts entries with a single native batch.
func (s *HistoryStore) SaveBatch(ctx context.Context, entries []*model.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO history_elements (
			id, block_number, timestamp, address, extrinsic_hash, extrinsic_idx, kind, payload
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, entry := range entries {
		if err := storage.ValidateEntry(entry); err != nil {
			return err
		}
		payload, err := payloadJSON(entry)
		if err != nil {
			return err
		}
		err = batch.Append(
			entry.ID, entry.BlockNumber, entry.Timestamp, entry.Address,
			entry.ExtrinsicHash, uint32(entry.ExtrinsicIdx), entry.PayloadKind(), payload,
		)
		if err != nil {
			return fmt.Errorf("append %s to batch: %w", entry.ID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// Get returns the latest version of the entry with id.
func (s *HistoryStore) Get(ctx context.Context, id string) (*model.HistoryEntry, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, block_number, timestamp, address, extrinsic_hash, extrinsic_idx, kind, payload
		FROM history_elements FINAL
		WHERE id = ?
		LIMIT 1
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("query %s: %w", id, err)
		}
		return nil, storage.ErrNotFound
	}

	var (
		entry        model.HistoryEntry
		extrinsicIdx uint32
		kind         string
		payload      string
	)
	if err := rows.Scan(&entry.ID, &entry.BlockNumber, &entry.Timestamp, &entry.Address,
		&entry.ExtrinsicHash, &extrinsicIdx, &kind, &payload); err != nil {
		return nil, fmt.Errorf("scan %s: %w", id, err)
	}
	entry.ExtrinsicIdx = int(extrinsicIdx)

	if err := attachPayload(&entry, kind, payload); err != nil {
		return nil, err
	}
	return &entry, nil
}

func payloadJSON(entry *model.HistoryEntry) (string, error) {
	var value interface{}
	switch entry.PayloadKind() {
	case "transfer":
		value = entry.Transfer
	case "assetTransfer":
		value = entry.AssetTransfer
	case "swap":
		value = entry.Swap
	case "extrinsic":
		value = entry.Extrinsic
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

func attachPayload(entry *model.HistoryEntry, kind, payload string) error {
	var target interface{}
	switch kind {
	case "transfer":
		entry.Transfer = &model.NativeTransfer{}
		target = entry.Transfer
	case "assetTransfer":
		entry.AssetTransfer = &model.AssetTransfer{}
		target = entry.AssetTransfer
	case "swap":
		entry.Swap = &model.Swap{}
		target = entry.Swap
	case "extrinsic":
		entry.Extrinsic = &model.ExtrinsicSummary{}
		target = entry.Extrinsic
	default:
		return fmt.Errorf("unknown payload kind %q", kind)
	}
	if err := json.Unmarshal([]byte(payload), target); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return nil
}
