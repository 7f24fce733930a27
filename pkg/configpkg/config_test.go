package configpkg

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeEnv(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "app.env"), []byte(content), 0o600); err != nil {
		t.Fatalf("os.WriteFile() returned error: %v", err)
	}

	return dir
}

func TestLoad(t *testing.T) {
	dir := writeEnv(t, `DB_SOURCE=postgresql://u:p@localhost:5432/db
DB_MAX_OPEN_CONNS=10
DB_CONN_MAX_LIFETIME=5m
SERVER_ADDRESS=127.0.0.1:9000
GO_ENV=development
`)

	c, err := Load(dir)
	require.NoError(t, err)

	require.Equal(t, "postgres", c.DBDriver)
	require.Equal(t, "postgresql://u:p@localhost:5432/db", c.DBSource)
	require.Equal(t, 10, c.DBMaxOpenConns)
	require.Equal(t, 5*time.Minute, c.DBConnMaxLifetime)
	require.Equal(t, "127.0.0.1:9000", c.ServerAddress)
	require.Equal(t, "/metrics", c.MetricsPath)
	require.Equal(t, "development", c.Environement)
}

func TestLoadEnvOverride(t *testing.T) {
	dir := writeEnv(t, "SERVER_ADDRESS=127.0.0.1:9000\n")

	t.Setenv("SERVER_ADDRESS", "0.0.0.0:7000")

	c, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:7000", c.ServerAddress)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
}
