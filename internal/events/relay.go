package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"github.com/skillforge/skillforge/internal/events/domain"
	"github.com/skillforge/skillforge/internal/ratelimit"
	"go.uber.org/zap"
)

// Channel is the redis pub/sub channel progression events are relayed to.
const Channel = "skillforge.progression"

const (
	relayInterval  = 5 * time.Second
	relayBatchSize = 100
	relayLockKey   = "progression:events:relay:lock"
	relayLockTTL   = 30 * time.Second
)

// Relay drains the outbox on a fixed interval and publishes drained
// events to redis. Without a redis client it still marks events
// published so the table does not grow without bound.
type Relay struct {
	outbox domain.Outbox
	rdb    *redis.Client
	locker *ratelimit.Locker
	log    *zap.Logger
}

func NewRelay(outbox domain.Outbox, rdb *redis.Client, log *zap.Logger) *Relay {
	return &Relay{
		outbox: outbox,
		rdb:    rdb,
		locker: ratelimit.NewLocker(rdb),
		log:    log.Named("events.relay"),
	}
}

func (r *Relay) RunForever(ctx context.Context) {
	ticker := time.NewTicker(relayInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil {
				r.log.Warn("relay pass failed", zap.Error(err))
			}
		}
	}
}

func (r *Relay) RunOnce(ctx context.Context) error {
	// When several instances share a redis, only the lock holder drains.
	if r.locker != nil {
		token, ok, err := r.locker.TryLock(ctx, relayLockKey, relayLockTTL)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		defer func() {
			if err := r.locker.Release(ctx, relayLockKey, token); err != nil {
				r.log.Warn("release relay lock", zap.Error(err))
			}
		}()
	}

	rows, err := r.outbox.Drain(ctx, relayBatchSize)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	ids := make([]snowflake.ID, 0, len(rows))
	for _, row := range rows {
		if r.rdb != nil {
			payload, err := json.Marshal(row)
			if err != nil {
				r.log.Error("encode progression event", zap.Error(err), zap.Int64("event_id", row.ID.Int64()))
				continue
			}
			if err := r.rdb.Publish(ctx, Channel, payload).Err(); err != nil {
				// Leave unpublished; the next pass retries.
				r.log.Warn("publish progression event", zap.Error(err))
				break
			}
		}
		ids = append(ids, row.ID)
	}

	if err := r.outbox.MarkPublished(ctx, ids); err != nil {
		return err
	}
	if len(ids) > 0 {
		r.log.Debug("relayed progression events", zap.Int("count", len(ids)))
	}
	return nil
}
