package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hookstream/hookstream/internal/store"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolve()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, filepath.Join(cfg.DataDir, "events.db"), cfg.DBPath)
}

func TestValidateRejectsWriteTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HTTP.WriteTimeout = 10 * time.Second
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNegativeRetention(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Retention.TotalLimit = -1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Retention.RegularRetentionHours = -4
	assert.Error(t, cfg.Validate())
}

func TestLoadFromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: /var/lib/hookstream
http:
  addr: ":9000"
retention:
  total_limit: 200
  priority_retention_hours: 48
broadcast:
  buffer_size: 128
`), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/hookstream", cfg.DataDir)
	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, 200, cfg.Retention.TotalLimit)
	assert.Equal(t, 48, cfg.Retention.PriorityRetentionHours)
	assert.Equal(t, 128, cfg.Broadcast.BufferSize)

	// Fields absent from the file keep their defaults.
	assert.Equal(t, store.DefaultRegularRetentionHours, cfg.Retention.RegularRetentionHours)
}

func TestLoadFromJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"http":{"addr":":7000"}}`), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.HTTP.Addr)
}

func TestLoadFromFileRejectsUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("x = 1"), 0644))

	_, err := LoadFromFile(path)
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HOOKSTREAM_DB_PATH", "/tmp/custom.db")
	t.Setenv("HOOKSTREAM_HTTP_ADDR", ":5555")
	t.Setenv("HOOKSTREAM_RETENTION_TOTAL_LIMIT", "99")
	t.Setenv("HOOKSTREAM_HTTP_READ_TIMEOUT", "45s")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	assert.Equal(t, "/tmp/custom.db", cfg.DBPath)
	assert.Equal(t, ":5555", cfg.HTTP.Addr)
	assert.Equal(t, 99, cfg.Retention.TotalLimit)
	assert.Equal(t, 45*time.Second, cfg.HTTP.ReadTimeout)
}

func TestStoreRetention(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Retention.TotalLimit = 0 // zero falls back to the store default

	rc := cfg.StoreRetention()
	assert.Equal(t, store.DefaultTotalLimit, rc.TotalLimit)
	assert.Equal(t, store.DefaultPriorityLimit, rc.PriorityLimit)
}
