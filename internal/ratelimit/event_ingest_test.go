package ratelimit

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/skillforge/skillforge/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEventIngestLimiterDisabled(t *testing.T) {
	limiter, err := NewEventIngestLimiter(Params{
		Config: config.Config{},
	})
	require.NoError(t, err)
	assert.Nil(t, limiter)
	assert.False(t, limiter.Enabled())
}

func TestNewEventIngestLimiterRequiresRedis(t *testing.T) {
	_, err := NewEventIngestLimiter(Params{
		Config: config.Config{
			RateLimit: config.RateLimitConfig{
				Enabled:       true,
				LearnerRate:   5,
				LearnerBurst:  10,
				EndpointRate:  100,
				EndpointBurst: 200,
			},
		},
	})
	assert.Error(t, err)
}

func TestNewEventIngestLimiterValidatesRates(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer rdb.Close()

	_, err := NewEventIngestLimiter(Params{
		Config: config.Config{
			RateLimit: config.RateLimitConfig{
				Enabled:       true,
				LearnerRate:   0,
				LearnerBurst:  10,
				EndpointRate:  100,
				EndpointBurst: 200,
			},
		},
		RDB: rdb,
	})
	assert.Error(t, err)
}

func TestNilLimiterAllowsEverything(t *testing.T) {
	var limiter *EventIngestLimiter
	ctx := context.Background()

	allowed, err := limiter.AllowLearner(ctx, "42")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = limiter.AllowEndpoint(ctx, "/v1/progression/activity")
	require.NoError(t, err)
	assert.True(t, allowed)
}
