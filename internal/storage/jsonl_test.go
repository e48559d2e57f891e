package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"txhistory/internal/model"
)

func TestJSONLStoreAppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "history.jsonl")
	store := NewJSONLStore(path)

	first := &model.HistoryEntry{ID: "5-1-to", BlockNumber: 5, ExtrinsicIdx: 1, Address: "B"}
	first.Attach(&model.NativeTransfer{From: "A", To: "B", Amount: "100", Fee: "1"})
	second := &model.HistoryEntry{ID: "5-1-from", BlockNumber: 5, ExtrinsicIdx: 1, Address: "A"}
	second.Attach(&model.NativeTransfer{From: "A", To: "B", Amount: "100", Fee: "1"})

	for _, entry := range []*model.HistoryEntry{first, second} {
		if err := store.Save(context.Background(), entry); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	var ids []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var entry model.HistoryEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if entry.Transfer == nil {
			t.Fatalf("transfer payload missing in %s", scanner.Text())
		}
		ids = append(ids, entry.ID)
	}
	if len(ids) != 2 || ids[0] != "5-1-to" || ids[1] != "5-1-from" {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestJSONLStoreRejectsEmptyPayload(t *testing.T) {
	store := NewJSONLStore(filepath.Join(t.TempDir(), "history.jsonl"))
	if err := store.Save(context.Background(), &model.HistoryEntry{ID: "1-0-extrinsic"}); err != ErrInvalidInput {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
