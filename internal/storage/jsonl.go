package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"txhistory/internal/model"
)

// JSONLStore appends history entries to a JSONL file. Consumers that need
// upsert semantics keep the last line per id.
type JSONLStore struct {
	path   string
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
}

func NewJSONLStore(path string) *JSONLStore {
	return &JSONLStore{path: path}
}

var _ HistoryStore = (*JSONLStore)(nil)

// Save appends entry as one JSON line and flushes it.
func (s *JSONLStore) Save(_ context.Context, entry *model.HistoryEntry) error {
	if err := ValidateEntry(entry); err != nil {
		return err
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.open(); err != nil {
		return err
	}
	if _, err := s.writer.Write(line); err != nil {
		return fmt.Errorf("write history entry: %w", err)
	}
	if err := s.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	if err := s.writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

func (s *JSONLStore) open() error {
	if s.file != nil {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	s.file = file
	s.writer = bufio.NewWriter(file)
	return nil
}

// Close flushes and closes the output file.
func (s *JSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.writer.Flush()
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	s.file, s.writer = nil, nil
	return err
}
