package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidortega/channelsync-backend/pkg/config"
)

func TestBuildKeysAreNamespaced(t *testing.T) {
	c := &Client{}
	assert.Equal(t, "cs:idempotency:webhook|POST:abc", c.IdempotencyKey("webhook|POST", "abc"))
	assert.Equal(t, "cs:lock:cron", c.LockKey("cron"))
	assert.Equal(t, "cs:counter:dispatch", c.CounterKey("dispatch"))
}

func TestBuildKeySkipsEmptyParts(t *testing.T) {
	c := &Client{}
	assert.Equal(t, "cs:idempotency:abc", c.IdempotencyKey("", "abc"))
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	assert.Error(t, err)

	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/2"})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)

	opts, err = optionsFromConfig(config.RedisConfig{Address: "10.0.0.5:6379", DB: 1, PoolSize: 4})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5:6379", opts.Addr)
	assert.Equal(t, 1, opts.DB)
	assert.Equal(t, 4, opts.PoolSize)
}

func TestUninitializedClientErrors(t *testing.T) {
	c := &Client{}
	_, err := c.Get(context.Background(), "missing")
	assert.Error(t, err)
	assert.Error(t, c.Ping(context.Background()))
}
