package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "output_tokenizer", cfg.Index.TokenizerDir)
	assert.Equal(t, "output_index_construct", cfg.Index.ConstructDir)
	assert.Zero(t, cfg.Index.MaxLineBytes)
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.Kafka.Enabled)
	assert.False(t, cfg.Postgres.Enabled)
	assert.Equal(t, "index.complete", cfg.Kafka.Topics.IndexComplete)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posindex.yaml")
	data := `
index:
  tokenizerDir: /var/lib/posindex/tok
  constructDir: /var/lib/posindex/idx
  maxLineBytes: 65536
logging:
  level: debug
  format: json
redis:
  enabled: true
  cacheTTL: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/posindex/tok", cfg.Index.TokenizerDir)
	assert.Equal(t, "/var/lib/posindex/idx", cfg.Index.ConstructDir)
	assert.Equal(t, int64(65536), cfg.Index.MaxLineBytes)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Redis.CacheTTL)
	// untouched sections keep defaults
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("POSINDEX_CONSTRUCT_DIR", "/tmp/idx")
	t.Setenv("POSINDEX_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("POSINDEX_MAX_LINE_BYTES", "4096")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/idx", cfg.Index.ConstructDir)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, int64(4096), cfg.Index.MaxLineBytes)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Index.MaxLineBytes = -1
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Server.RateLimit = -5
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Index.TokenizerDir = " "
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Kafka.Enabled = true
	cfg.Kafka.Brokers = nil
	assert.Error(t, cfg.Validate())
}

func TestPostgresDSN(t *testing.T) {
	cfg := Default()
	assert.Equal(t,
		"host=localhost port=5432 user=posindex password=localdev dbname=posindex sslmode=disable",
		cfg.Postgres.DSN(),
	)
}

func TestDevelopmentConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "development.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.Server.WatchDebounce)
	assert.Equal(t, 50, cfg.Server.RateBurst)
	assert.Equal(t, "posindex-searcher", cfg.Kafka.ConsumerGroup)
}
