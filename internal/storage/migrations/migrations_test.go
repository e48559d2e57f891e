package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@localhost:5432/db?sslmode=disable", migrateURL("postgres://u:p@localhost:5432/db?sslmode=disable"))
	assert.Equal(t, "pgx5://localhost/db", migrateURL("postgresql://localhost/db"))
	assert.Equal(t, "pgx5://localhost/db", migrateURL("pgx5://localhost/db"))
}

func TestPostgresMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(PostgresFS, "postgres")
	require.NoError(t, err)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Fatalf("unexpected migration file %s", name)
		}
	}
	require.NotEmpty(t, ups)
	assert.Equal(t, ups, downs)
}

func TestClickhouseSchemaEmbedded(t *testing.T) {
	data, err := fs.ReadFile(ClickhouseFS, "clickhouse/001_history_elements.sql")
	require.NoError(t, err)
	assert.Contains(t, string(data), "ReplacingMergeTree")
}
