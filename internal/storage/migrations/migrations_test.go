package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	input := `
-- header comment
CREATE TABLE a (x UInt64) ENGINE = Memory;

CREATE TABLE b (y String DEFAULT 'it''s') ENGINE = Memory;
`
	stmts, err := SplitStatements(input)
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	assert.True(t, strings.HasPrefix(stmts[0], "CREATE TABLE a"))
	assert.Contains(t, stmts[1], "'it''s'")
}

func TestSplitStatements_RejectsQuotedSemicolon(t *testing.T) {
	_, err := SplitStatements(`INSERT INTO t VALUES ('a;b');`)
	assert.Error(t, err)
}

func TestEmbeddedMigrations(t *testing.T) {
	pg, err := sqlFiles(PostgresFS, "postgres")
	require.NoError(t, err)
	assert.Contains(t, pg, "001_operations.sql")

	ch, err := sqlFiles(ClickhouseFS, "clickhouse")
	require.NoError(t, err)
	require.Contains(t, ch, "001_exchange_rates.sql")

	data, err := fs.ReadFile(ClickhouseFS, "clickhouse/001_exchange_rates.sql")
	require.NoError(t, err)
	stmts, err := SplitStatements(string(data))
	require.NoError(t, err)
	assert.Len(t, stmts, 1)
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default:@localhost:9000/solido")
	require.NoError(t, err)
	assert.Equal(t, "solido", db)

	_, err = databaseFromDSN("clickhouse://localhost:9000")
	assert.Error(t, err)
}
