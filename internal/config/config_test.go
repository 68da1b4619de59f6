package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 0.70, cfg.Search.SimilarityThreshold)
	require.Equal(t, 100, cfg.Search.MaxResults)
	require.Equal(t, 60.0, cfg.Search.RRFConstant)
	require.Equal(t, 0.70, cfg.Search.VectorWeight)
	require.Equal(t, 0.30, cfg.Search.LexicalWeight)
	require.Equal(t, 0.15, cfg.Search.PersonalNegStrength)
	require.Equal(t, 0.08, cfg.Search.GlobalNegStrength)
	require.Equal(t, 5, cfg.Search.MinFilteredResults)
	require.Equal(t, "buffalo_l_v1", cfg.Search.ModelVersion)
	require.Equal(t, 15*time.Second, cfg.Search.Timeout)
	require.Equal(t, 4, cfg.Ingest.WorkerCount)
	require.Equal(t, 30*time.Second, cfg.Ingest.LockWait)
	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
server:
  port: 9000
database:
  host: db.internal
  user: svc
  password: secret
  name: facematch
search:
  similarity_threshold: 0.65
  timeout: 5s
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 9000, cfg.Server.Port)
	require.Equal(t, 0.65, cfg.Search.SimilarityThreshold)
	require.Equal(t, 5*time.Second, cfg.Search.Timeout)
	require.Equal(t, "debug", cfg.Logging.Level)
	// Unset fields still get defaults.
	require.Equal(t, 100, cfg.Search.MaxResults)
	require.Equal(t, 4, cfg.Ingest.WorkerCount)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FACEMATCH_SERVER_PORT", "7070")
	t.Setenv("FACEMATCH_SIMILARITY_THRESHOLD", "0.8")
	t.Setenv("FACEMATCH_DB_HOST", "pg.override")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 7070, cfg.Server.Port, "env beats file")
	require.Equal(t, 0.8, cfg.Search.SimilarityThreshold)
	require.Equal(t, "pg.override", cfg.Database.Host)
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: 5432, Name: "n", User: "u", Password: "p"}
	require.Equal(t, "postgres://u:p@h:5432/n?sslmode=disable", d.DSN())
}
