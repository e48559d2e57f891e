package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"txhistory/internal/storage"
)

// Checkpointer loads and saves the last processed block.
type Checkpointer interface {
	Load(ctx context.Context) (uint64, bool, error)
	Save(ctx context.Context, lastProcessed uint64) error
}

// Checkpoint tracks the last processed block.
type Checkpoint struct {
	LastProcessedBlock uint64 `json:"last_processed_block"`
	UpdatedAt          string `json:"updated_at"`
}

// CheckpointStore persists checkpoints to disk.
type CheckpointStore struct {
	path    string
	enabled bool
}

func NewCheckpointStore(path string, enabled bool) *CheckpointStore {
	return &CheckpointStore{path: path, enabled: enabled && path != ""}
}

func (c *CheckpointStore) Load(_ context.Context) (uint64, bool, error) {
	if !c.enabled {
		return 0, false, nil
	}

	stat, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("stat checkpoint: %w", err)
	}
	if stat.IsDir() {
		return 0, false, fmt.Errorf("checkpoint path is a directory")
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return 0, false, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return 0, false, fmt.Errorf("parse checkpoint: %w", err)
	}

	return cp.LastProcessedBlock, true, nil
}

func (c *CheckpointStore) Save(_ context.Context, lastProcessed uint64) error {
	if !c.enabled {
		return nil
	}

	dir := filepath.Dir(c.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	cp := Checkpoint{
		LastProcessedBlock: lastProcessed,
		UpdatedAt:          time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint tmp: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}

	return nil
}

// StateCheckpoint keeps the checkpoint in a storage.StateStore row.
type StateCheckpoint struct {
	Store storage.StateStore
	Name  string
}

func (c StateCheckpoint) Load(ctx context.Context) (uint64, bool, error) {
	block, ok, err := c.Store.LoadState(ctx, c.Name)
	if err != nil {
		return 0, false, fmt.Errorf("load checkpoint %s: %w", c.Name, err)
	}
	return block, ok, nil
}

func (c StateCheckpoint) Save(ctx context.Context, lastProcessed uint64) error {
	if err := c.Store.SaveState(ctx, c.Name, lastProcessed); err != nil {
		return fmt.Errorf("save checkpoint %s: %w", c.Name, err)
	}
	return nil
}
