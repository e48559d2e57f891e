package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"txhistory/internal/model"
	"txhistory/internal/storage"
)

// Store provides Postgres persistence for history entries and indexer state.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

var (
	_ storage.HistoryStore = (*Store)(nil)
	_ storage.BatchSaver   = (*Store)(nil)
	_ storage.StateStore   = (*Store)(nil)
)

const upsertHistory = `
	INSERT INTO history_elements (
		id, block_number, timestamp, address, extrinsic_hash, extrinsic_idx,
		kind, transfer, asset_transfer, swap, extrinsic, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
	ON CONFLICT (id)
	DO UPDATE SET
		block_number = EXCLUDED.block_number,
		timestamp = EXCLUDED.timestamp,
		address = EXCLUDED.address,
		extrinsic_hash = EXCLUDED.extrinsic_hash,
		extrinsic_idx = EXCLUDED.extrinsic_idx,
		kind = EXCLUDED.kind,
		transfer = EXCLUDED.transfer,
		asset_transfer = EXCLUDED.asset_transfer,
		swap = EXCLUDED.swap,
		extrinsic = EXCLUDED.extrinsic,
		updated_at = now()
`

// Save inserts or replaces a history entry.
func (s *Store) Save(ctx context.Context, entry *model.HistoryEntry) error {
	args, err := historyArgs(entry)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, upsertHistory, args...); err != nil {
		return fmt.Errorf("save %s: %w", entry.ID, err)
	}
	return nil
}

// SaveBatch upserts entries in one round trip.
func (s *Store) SaveBatch(ctx context.Context, entries []*model.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, entry := range entries {
		args, err := historyArgs(entry)
		if err != nil {
			return err
		}
		batch.Queue(upsertHistory, args...)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for _, entry := range entries {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("save %s: %w", entry.ID, err)
		}
	}
	return nil
}

func historyArgs(entry *model.HistoryEntry) ([]interface{}, error) {
	if err := storage.ValidateEntry(entry); err != nil {
		return nil, err
	}

	transfer, err := jsonOrNil(entry.Transfer)
	if err != nil {
		return nil, err
	}
	assetTransfer, err := jsonOrNil(entry.AssetTransfer)
	if err != nil {
		return nil, err
	}
	swap, err := jsonOrNil(entry.Swap)
	if err != nil {
		return nil, err
	}
	extrinsic, err := jsonOrNil(entry.Extrinsic)
	if err != nil {
		return nil, err
	}

	return []interface{}{
		entry.ID,
		int64(entry.BlockNumber),
		int64(entry.Timestamp),
		entry.Address,
		entry.ExtrinsicHash,
		entry.ExtrinsicIdx,
		entry.PayloadKind(),
		transfer,
		assetTransfer,
		swap,
		extrinsic,
	}, nil
}

func jsonOrNil[T any](value *T) ([]byte, error) {
	if value == nil {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return data, nil
}

// Get returns the entry with id or storage.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*model.HistoryEntry, error) {
	var (
		entry                                    model.HistoryEntry
		blockNumber, timestamp                   int64
		transfer, assetTransfer, swap, extrinsic []byte
	)
	row := s.pool.QueryRow(ctx, `
		SELECT id, block_number, timestamp, address, extrinsic_hash, extrinsic_idx,
			transfer, asset_transfer, swap, extrinsic
		FROM history_elements WHERE id=$1
	`, id)
	err := row.Scan(&entry.ID, &blockNumber, &timestamp, &entry.Address, &entry.ExtrinsicHash, &entry.ExtrinsicIdx,
		&transfer, &assetTransfer, &swap, &extrinsic)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	entry.BlockNumber = uint64(blockNumber)
	entry.Timestamp = uint64(timestamp)

	if err := unmarshalOptional(transfer, &entry.Transfer); err != nil {
		return nil, err
	}
	if err := unmarshalOptional(assetTransfer, &entry.AssetTransfer); err != nil {
		return nil, err
	}
	if err := unmarshalOptional(swap, &entry.Swap); err != nil {
		return nil, err
	}
	if err := unmarshalOptional(extrinsic, &entry.Extrinsic); err != nil {
		return nil, err
	}
	return &entry, nil
}

func unmarshalOptional[T any](data []byte, target **T) error {
	if len(data) == 0 {
		return nil
	}
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	*target = &value
	return nil
}

// LoadState returns last_processed_block for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_block FROM indexer_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SaveState upserts last_processed_block for a name.
func (s *Store) SaveState(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO indexer_state (name, last_processed_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_block = EXCLUDED.last_processed_block, updated_at = now()
	`, name, int64(block))
	return err
}
