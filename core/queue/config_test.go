package queue_test

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pnptv/broadcastq/core/queue"
)

func TestConfig_EnvDefaults(t *testing.T) {
	var cfg queue.Config
	require.NoError(t, env.Parse(&cfg))

	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 10*time.Minute, cfg.JobTimeout)
	assert.Equal(t, 15*time.Minute, cfg.LockTimeout)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, []string{
		queue.QueueBroadcasts,
		queue.QueueSegmentBroadcasts,
		queue.QueueRetries,
		queue.QueueCleanup,
	}, cfg.Queues)
	assert.Equal(t, 5*time.Minute, cfg.RetryInterval)
	assert.Equal(t, 2, cfg.CleanupHour)
	assert.Equal(t, 7, cfg.RetentionDays)
	assert.Equal(t, queue.QueueBroadcasts, cfg.DefaultQueue)
	assert.Equal(t, queue.DefaultMaxAttempts, cfg.DefaultMaxAttempts)
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("QUEUE_CONCURRENCY", "8")
	t.Setenv("QUEUE_WORKER_QUEUES", "broadcasts,cleanup")
	t.Setenv("QUEUE_RETENTION_DAYS", "30")

	var cfg queue.Config
	require.NoError(t, env.Parse(&cfg))

	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, []string{queue.QueueBroadcasts, queue.QueueCleanup}, cfg.Queues)
	assert.Equal(t, 30, cfg.RetentionDays)
}

func TestDefaultConfig(t *testing.T) {
	cfg := queue.DefaultConfig()

	var envCfg queue.Config
	require.NoError(t, env.Parse(&envCfg))
	assert.Equal(t, envCfg, cfg)
}
