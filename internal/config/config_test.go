package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`log_level: debug`))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 12*time.Second, cfg.Ingest.Delay)
	assert.Equal(t, 2*time.Minute, cfg.Ingest.LockTTL)
	assert.Equal(t, "0 0 * * *", cfg.Ingest.Schedule)
	assert.Equal(t, "rabbitmq", cfg.Queue.Backend)
	assert.Equal(t, "ingest_continuations_delay", cfg.Queue.RabbitMQ.DelayQueue)
	assert.Equal(t, cfg.Queue.RabbitMQ.URL, cfg.Events.URL)
	assert.Empty(t, cfg.AllowedSources())
}

func TestParseExpandsEnvAndBuildsAllowList(t *testing.T) {
	t.Setenv("TEST_NEWSAPI_KEY", "secret")

	cfg, err := Parse([]byte(`
sources:
  NewsAPI:
    api_key: ${TEST_NEWSAPI_KEY}
  guardian:
    api_key: guardian-key
    enabled: false
  nytimes:
    api_key: ""
ingest:
  delay: 5s
`))
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.Sources["newsapi"].APIKey)
	assert.Equal(t, []string{"newsapi"}, cfg.AllowedSources())
	assert.Equal(t, 5*time.Second, cfg.Ingest.Delay)
}

func TestParseRejectsUnknownQueueBackend(t *testing.T) {
	_, err := Parse([]byte("queue:\n  backend: kafka\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka")
}

func TestParseRequiresSQSQueueURL(t *testing.T) {
	_, err := Parse([]byte("queue:\n  backend: sqs\n"))
	require.Error(t, err)

	cfg, err := Parse([]byte("queue:\n  backend: sqs\n  sqs:\n    region: eu-west-1\n    queue_url: https://sqs.test/q\n"))
	require.NoError(t, err)
	assert.Equal(t, 20*time.Second, cfg.Queue.SQS.WaitTime)
}

func TestParseRejectsDelayAboveSQSMaximum(t *testing.T) {
	base := "queue:\n  backend: sqs\n  sqs:\n    queue_url: https://sqs.test/q\n"

	_, err := Parse([]byte(base + "ingest:\n  delay: 16m\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqs maximum")

	_, err = Parse([]byte(base + "ingest:\n  delay: 15m\n"))
	require.NoError(t, err)

	_, err = Parse([]byte("queue:\n  backend: bolt\ningest:\n  delay: 1h\n"))
	require.NoError(t, err)
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  host: db\n  port: 5432\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Contains(t, cfg.Database.DSN(), "host=db port=5432")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}
