package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.False(t, cfg.Debug)
}

func TestLoadEnvBindings(t *testing.T) {
	t.Setenv("SQLALCHEMY_URIS", "postgresql://u@a/db,sqlite://b.db")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "svc")
	t.Setenv("DB_PASSWORD", "hunter2")
	t.Setenv("DB_DIALECT", "postgresql")
	t.Setenv("DEBUG", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgresql://u@a/db,sqlite://b.db", cfg.DB.URIs)
	assert.Equal(t, "db.internal", cfg.DB.Host)
	assert.Equal(t, "5432", cfg.DB.Port)
	assert.Equal(t, "svc", cfg.DB.User)
	assert.Equal(t, "hunter2", cfg.DB.Password)
	assert.Equal(t, "postgresql", cfg.DB.Dialect)
	assert.True(t, cfg.Debug)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "autorest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  listenAddr: ":9090"
db:
  uris: sqlite://app.db
debug: true
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.ListenAddr)
	assert.Equal(t, "sqlite://app.db", cfg.DB.URIs)
	assert.True(t, cfg.Debug)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
