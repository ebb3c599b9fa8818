package cache

import (
	"time"

	"github.com/bwmarrin/snowflake"
	userdomain "github.com/skillforge/skillforge/internal/user/domain"
)

const (
	defaultExistsTTL   = 5 * time.Minute
	defaultSnapshotTTL = 15 * time.Second
)

// LearnerResolverCache stores hot-path learner lookups for event ingest.
// Snapshots are kept on a short TTL and invalidated on every award, so
// read endpoints may serve briefly stale totals but ingest never does.
type LearnerResolverCache interface {
	Exists(learnerID snowflake.ID) (bool, bool)
	SetExists(learnerID snowflake.ID, exists bool)
	GetSnapshot(learnerID snowflake.ID) (userdomain.Learner, bool)
	SetSnapshot(learner userdomain.Learner)
	Invalidate(learnerID snowflake.ID)
}

type learnerResolverCache struct {
	exists    Cache[snowflake.ID, bool]
	snapshots Cache[snowflake.ID, userdomain.Learner]

	existsTTL   time.Duration
	snapshotTTL time.Duration
}

// NewLearnerResolverCache returns an in-memory cache tuned for ingest.
func NewLearnerResolverCache() LearnerResolverCache {
	return &learnerResolverCache{
		exists:      NewTTLCache[snowflake.ID, bool](),
		snapshots:   NewTTLCache[snowflake.ID, userdomain.Learner](),
		existsTTL:   defaultExistsTTL,
		snapshotTTL: defaultSnapshotTTL,
	}
}

func (c *learnerResolverCache) Exists(learnerID snowflake.ID) (bool, bool) {
	return c.exists.Get(learnerID)
}

func (c *learnerResolverCache) SetExists(learnerID snowflake.ID, exists bool) {
	if learnerID == 0 {
		return
	}
	c.exists.Set(learnerID, exists, c.existsTTL)
}

func (c *learnerResolverCache) GetSnapshot(learnerID snowflake.ID) (userdomain.Learner, bool) {
	return c.snapshots.Get(learnerID)
}

func (c *learnerResolverCache) SetSnapshot(learner userdomain.Learner) {
	if learner.ID == 0 {
		return
	}
	c.snapshots.Set(learner.ID, learner, c.snapshotTTL)
}

func (c *learnerResolverCache) Invalidate(learnerID snowflake.ID) {
	c.snapshots.Delete(learnerID)
}
