package database

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrationVersions_SortedAndEmbedded(t *testing.T) {
	versions, err := migrationVersions()
	require.NoError(t, err)
	require.Equal(t, []string{"001_users.sql", "002_refresh_tokens.sql"}, versions)

	script, err := migrationFiles.ReadFile("migrations/002_refresh_tokens.sql")
	require.NoError(t, err)
	require.Contains(t, string(script), "WHERE NOT is_revoked")
}
