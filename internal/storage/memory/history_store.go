package memory

import (
	"context"
	"sync"

	"txhistory/internal/model"
	"txhistory/internal/storage"
)

// HistoryStore is an in-memory implementation of storage.HistoryStore.
type HistoryStore struct {
	mu    sync.RWMutex
	data  map[string]*model.HistoryEntry
	order   []string
	saves   []string
	batches [][]string
}

// NewHistoryStore creates a new in-memory history store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{data: make(map[string]*model.HistoryEntry)}
}

var (
	_ storage.HistoryStore = (*HistoryStore)(nil)
	_ storage.BatchSaver   = (*HistoryStore)(nil)
)

// Save upserts a copy of entry by id.
func (s *HistoryStore) Save(_ context.Context, entry *model.HistoryEntry) error {
	if err := storage.ValidateEntry(entry); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(entry)
	return nil
}

// SaveBatch upserts all entries in order, or none when one is invalid.
func (s *HistoryStore) SaveBatch(_ context.Context, entries []*model.HistoryEntry) error {
	for _, entry := range entries {
		if err := storage.ValidateEntry(entry); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		s.put(entry)
		ids = append(ids, entry.ID)
	}
	s.batches = append(s.batches, ids)
	return nil
}

func (s *HistoryStore) put(entry *model.HistoryEntry) {
	if _, exists := s.data[entry.ID]; !exists {
		s.order = append(s.order, entry.ID)
	}
	entryCopy := *entry
	s.data[entry.ID] = &entryCopy
	s.saves = append(s.saves, entry.ID)
}

// Get returns the entry with id or storage.ErrNotFound.
func (s *HistoryStore) Get(_ context.Context, id string) (*model.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.data[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	entryCopy := *entry
	return &entryCopy, nil
}

// List returns stored entries in first-save order.
func (s *HistoryStore) List() []*model.HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.HistoryEntry, 0, len(s.order))
	for _, id := range s.order {
		entryCopy := *s.data[id]
		out = append(out, &entryCopy)
	}
	return out
}

// Saves returns the ids passed to Save, one per call.
func (s *HistoryStore) Saves() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.saves))
	copy(out, s.saves)
	return out
}

// Batches returns the ids of each SaveBatch call.
func (s *HistoryStore) Batches() [][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([][]string, len(s.batches))
	for i, ids := range s.batches {
		out[i] = append([]string(nil), ids...)
	}
	return out
}

// StateStore is an in-memory implementation of storage.StateStore.
type StateStore struct {
	mu    sync.RWMutex
	state map[string]uint64
}

func NewStateStore() *StateStore {
	return &StateStore{state: make(map[string]uint64)}
}

var _ storage.StateStore = (*StateStore)(nil)

func (s *StateStore) LoadState(_ context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, storage.ErrInvalidInput
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	block, ok := s.state[name]
	return block, ok, nil
}

func (s *StateStore) SaveState(_ context.Context, name string, block uint64) error {
	if name == "" {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state[name] = block
	return nil
}
