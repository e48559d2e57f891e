package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"txhistory/internal/model"
	"txhistory/internal/storage"
	"txhistory/internal/storage/migrations"
)

// setupTestStore starts a Postgres container, applies migrations and returns
// a connected store.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	require.NoError(t, migrations.RunPostgres(dsn, nil))

	store, err := NewStore(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store
}

func TestStoreSaveUpsertsByID(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	entry := &model.HistoryEntry{
		ID:            "120-2-from",
		BlockNumber:   120,
		Timestamp:     1700000000000,
		Address:       "A",
		ExtrinsicHash: "0xabc",
		ExtrinsicIdx:  2,
	}
	entry.Attach(&model.AssetTransfer{
		NativeTransfer: model.NativeTransfer{Amount: "100", From: "A", To: "B", Fee: "3"},
		AssetID:        "1984",
	})

	require.NoError(t, store.Save(ctx, entry))
	require.NoError(t, store.Save(ctx, entry))

	got, err := store.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry, got)

	var count int
	require.NoError(t, store.pool.QueryRow(ctx, `SELECT count(*) FROM history_elements`).Scan(&count))
	assert.Equal(t, 1, count)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStoreSaveBatch(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	from := &model.HistoryEntry{ID: "7-0-from", BlockNumber: 7, Address: "A"}
	from.Attach(&model.NativeTransfer{Amount: "5", From: "A", To: "B", Fee: "1"})
	summary := &model.HistoryEntry{ID: "7-1-extrinsic", BlockNumber: 7, ExtrinsicIdx: 1, Address: "C"}
	summary.Extrinsic = &model.ExtrinsicSummary{Hash: "0x01", Module: "staking", Call: "bond", Success: true, Fee: "9"}

	require.NoError(t, store.SaveBatch(ctx, []*model.HistoryEntry{from, summary}))

	got, err := store.Get(ctx, "7-1-extrinsic")
	require.NoError(t, err)
	assert.Equal(t, summary.Extrinsic, got.Extrinsic)
	assert.Nil(t, got.Transfer)
}

func TestStoreSaveBatchRepeatedID(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	to := &model.HistoryEntry{ID: "8-0-to", BlockNumber: 8, Address: "B"}
	to.Attach(&model.NativeTransfer{Amount: "5", From: "A", To: "B", Fee: "1"})
	from := &model.HistoryEntry{ID: "8-0-from", BlockNumber: 8, Address: "A"}
	from.Attach(&model.NativeTransfer{Amount: "5", From: "A", To: "B", Fee: "1"})

	require.NoError(t, store.SaveBatch(ctx, []*model.HistoryEntry{to, from, from}))

	got, err := store.Get(ctx, "8-0-from")
	require.NoError(t, err)
	assert.Equal(t, "A", got.Address)
}

func TestStoreState(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, ok, err := store.LoadState(ctx, "historian")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SaveState(ctx, "historian", 10))
	require.NoError(t, store.SaveState(ctx, "historian", 11))

	block, ok, err := store.LoadState(ctx, "historian")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(11), block)
}
