package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUpFilesAndAppliedBetween(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002_b.up.sql", "0001_a.up.sql", "0001_a.down.sql", "0003_c.up.sql"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o600))
	}
	files := upFiles(dir)
	require.Equal(t, []string{"0001_a.up.sql", "0002_b.up.sql", "0003_c.up.sql"}, files)
	require.Equal(t, []string{"0002_b.up.sql", "0003_c.up.sql"}, appliedBetween(files, 1, 3))
	require.Empty(t, appliedBetween(files, 3, 3))
}

func TestConfigURLEscapesPassword(t *testing.T) {
	cfg := Config{Host: "db", Port: "5432", User: "bot", Password: "p@ss word", Name: "dreams"}
	require.Equal(t, "postgres://bot:p%40ss%20word@db:5432/dreams?sslmode=disable", cfg.URL())
	require.Contains(t, cfg.DSN(), "sslmode=disable")
}
