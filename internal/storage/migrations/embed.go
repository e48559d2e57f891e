package migrations

import "embed"

// PostgresFS embeds the golang-migrate Postgres migrations.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds the ClickHouse schema files.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
