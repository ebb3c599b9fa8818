package ratelimit

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLockerWithoutRedisIsNil(t *testing.T) {
	l := NewLocker(nil)
	require.Nil(t, l)

	_, ok, err := l.TryLock(context.Background(), "relay", time.Second)
	assert.False(t, ok)
	assert.Error(t, err)

	assert.NoError(t, l.Release(context.Background(), "relay", "token"))
}

func TestTryLockValidation(t *testing.T) {
	l := NewLocker(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}))
	require.NotNil(t, l)

	_, _, err := l.TryLock(context.Background(), "", time.Second)
	assert.Error(t, err)

	_, _, err = l.TryLock(context.Background(), "relay", 0)
	assert.Error(t, err)

	// A blank key or token is a no-op release, not a redis call.
	assert.NoError(t, l.Release(context.Background(), "relay", ""))
	assert.NoError(t, l.Release(context.Background(), "", "token"))
}
