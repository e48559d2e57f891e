package storage

import (
	"errors"

	"txhistory/internal/model"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when an entry fails validation before it is written.
	ErrInvalidInput = errors.New("invalid input")
)

// ValidateEntry rejects entries without an id or a payload.
func ValidateEntry(entry *model.HistoryEntry) error {
	if entry == nil || entry.ID == "" || entry.PayloadKind() == "" {
		return ErrInvalidInput
	}
	return nil
}
