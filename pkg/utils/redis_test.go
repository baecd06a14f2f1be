package utils

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockReleaseScriptInitialized(t *testing.T) {
	require.NotNil(t, lockReleaseScript)
	assert.NotEmpty(t, lockReleaseScript.Hash())
}

func TestAcquireLock_RejectsInvalidArgs(t *testing.T) {
	_, _, err := AcquireLock(context.Background(), nil, "k", time.Second)
	assert.Error(t, err)

	err = ReleaseLock(context.Background(), nil, "k", "tok")
	assert.Error(t, err)
}

func TestOpenRedis_RequiresAddr(t *testing.T) {
	_, err := OpenRedis(context.Background(), RedisConfig{})
	assert.Error(t, err)
}

func TestRedisConfig_Defaults(t *testing.T) {
	c := RedisConfig{Addr: "localhost:6379"}.withDefaults()
	assert.Equal(t, 10, c.PoolSize)
	assert.Equal(t, 2*time.Second, c.PingTimeout)
}
