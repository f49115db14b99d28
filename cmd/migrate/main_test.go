package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dvloznov/smart-ledger/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFilenamePattern(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  string
		name     string
	}{
		{"0001_init.sql", true, "0001", "init"},
		{"0012_add_index.sql", true, "0012", "add_index"},
		{"001_invalid.sql", false, "", ""},
		{"0001_test", false, "", ""},
		{"0001.sql", false, "", ""},
		{"invalid_0001_test.sql", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			m := migrationPattern.FindStringSubmatch(tt.filename)
			if !tt.valid {
				assert.Nil(t, m)
				return
			}
			require.Len(t, m, 3)
			assert.Equal(t, tt.version, m[1])
			assert.Equal(t, tt.name, m[2])
		})
	}
}

func writeMigrations(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestReadMigrations(t *testing.T) {
	dir := writeMigrations(t, map[string]string{
		"0002_second.sql": "CREATE TABLE b (id INTEGER);",
		"0001_first.sql":  "CREATE TABLE a (id INTEGER);",
		"README.md":       "ignored",
	})

	migrations, err := readMigrations(dir, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "second", migrations[1].Name)
	assert.Len(t, migrations[0].Checksum, 64)
	assert.NotEqual(t, migrations[0].Checksum, migrations[1].Checksum)
}

func TestReadMigrations_DuplicateVersion(t *testing.T) {
	dir := writeMigrations(t, map[string]string{
		"0001_a.sql": "SELECT 1;",
		"0001_b.sql": "SELECT 2;",
	})

	_, err := readMigrations(dir, zerolog.Nop())
	assert.ErrorContains(t, err, "duplicate migration version")
}

func TestApplyMigrations(t *testing.T) {
	conn := testutil.NewTestDB(t)
	dir := writeMigrations(t, map[string]string{
		"0001_widgets.sql": "CREATE TABLE widgets (id INTEGER PRIMARY KEY);",
	})
	migrations, err := readMigrations(dir, zerolog.Nop())
	require.NoError(t, err)

	n, err := applyMigrations(conn, migrations, "test", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, conn.Migrator().HasTable("widgets"))

	n, err = applyMigrations(conn, migrations, "test", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	var recorded []SchemaMigration
	require.NoError(t, conn.Find(&recorded).Error)
	require.Len(t, recorded, 1)
	assert.Equal(t, "test", recorded[0].AppliedBy)
}
