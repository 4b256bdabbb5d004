package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSqliteDSN(t *testing.T) {
	dsn, err := sqliteDSN(":memory:")
	require.NoError(t, err)
	assert.Equal(t, "file::memory:?_pragma=foreign_keys(1)", dsn)

	dsn, err = sqliteDSN("file:x?mode=memory&cache=shared")
	require.NoError(t, err)
	assert.Equal(t, "file:x?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", dsn)

	path := filepath.Join(t.TempDir(), "nested", "users.db")
	dsn, err = sqliteDSN(path)
	require.NoError(t, err)
	assert.Equal(t, path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dsn)
	assert.DirExists(t, filepath.Dir(path))
}
