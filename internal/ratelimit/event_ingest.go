package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/skillforge/skillforge/internal/config"
	"go.uber.org/fx"
)

const (
	keyEventIngestLearner  = "progression:ingest:learner:%s"
	keyEventIngestEndpoint = "progression:ingest:endpoint:%s"
)

// EventIngestLimiter throttles the progression event-ingest endpoints,
// per learner and per endpoint. A nil limiter allows everything.
type EventIngestLimiter struct {
	enabled bool

	bucket *TokenBucket

	learnerRate   float64
	learnerBurst  int
	endpointRate  float64
	endpointBurst int
}

type Params struct {
	fx.In

	Config config.Config
	RDB    *redis.Client `optional:"true"`
}

func NewEventIngestLimiter(p Params) (*EventIngestLimiter, error) {
	limitCfg := p.Config.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	if p.RDB == nil {
		return nil, errors.New("rate limiting requires redis")
	}
	if limitCfg.LearnerRate <= 0 || limitCfg.LearnerBurst <= 0 {
		return nil, errors.New("learner rate limit must be positive")
	}
	if limitCfg.EndpointRate <= 0 || limitCfg.EndpointBurst <= 0 {
		return nil, errors.New("endpoint rate limit must be positive")
	}

	return &EventIngestLimiter{
		enabled:       true,
		bucket:        NewTokenBucket(p.RDB),
		learnerRate:   limitCfg.LearnerRate,
		learnerBurst:  limitCfg.LearnerBurst,
		endpointRate:  limitCfg.EndpointRate,
		endpointBurst: limitCfg.EndpointBurst,
	}, nil
}

func (l *EventIngestLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *EventIngestLimiter) AllowLearner(ctx context.Context, learnerID string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyEventIngestLearner, strings.TrimSpace(learnerID)), l.learnerRate, l.learnerBurst)
}

func (l *EventIngestLimiter) AllowEndpoint(ctx context.Context, endpoint string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyEventIngestEndpoint, strings.TrimSpace(endpoint)), l.endpointRate, l.endpointBurst)
}
