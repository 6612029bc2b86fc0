package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, "drawing.events", cfg.Kafka.Topic)
	assert.Equal(t, 5*time.Minute, cfg.Workflow.HistoryCacheTTL)
	assert.False(t, cfg.Workflow.ReuploadAfterClientReject)
	assert.False(t, cfg.Redis.Enabled())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("REDIS_HOST", "cache.internal")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("WORKFLOW_RECONCILE_INTERVAL", "90s")
	t.Setenv("WORKFLOW_REUPLOAD_AFTER_CLIENT_REJECT", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 90*time.Second, cfg.Workflow.ReconcileInterval)
	assert.True(t, cfg.Workflow.ReuploadAfterClientReject)
	assert.Contains(t, cfg.Database.DSN(), "host=db.internal port=6543")
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("DESIGNHUB_TEST_KEY", "set")
	assert.Equal(t, "set", GetEnvOrDefault("DESIGNHUB_TEST_KEY", "fallback"))
	assert.Equal(t, "fallback", GetEnvOrDefault("DESIGNHUB_TEST_MISSING", "fallback"))
}
