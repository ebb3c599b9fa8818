package cache

import (
	"testing"
	"time"

	userdomain "github.com/skillforge/skillforge/internal/user/domain"
	"github.com/stretchr/testify/assert"
)

func TestTTLCacheSetGet(t *testing.T) {
	c := NewTTLCache[string, int]()

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("a", 1, time.Minute)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	c.Set("a", 2, time.Minute)
	v, _ = c.Get("a")
	assert.Equal(t, 2, v)
}

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache[string, int]()
	c.Set("a", 1, 10*time.Millisecond)

	time.Sleep(25 * time.Millisecond)
	_, ok := c.Get("a")
	assert.False(t, ok, "entry must expire after its ttl")
}

func TestTTLCacheDelete(t *testing.T) {
	c := NewTTLCache[string, int]()
	c.Set("a", 1, time.Minute)
	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestTTLCacheIgnoresNonPositiveTTL(t *testing.T) {
	c := NewTTLCache[string, int]()
	c.Set("a", 1, 0)
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestLearnerResolverCache(t *testing.T) {
	c := NewLearnerResolverCache()
	learner := userdomain.Learner{ID: 42, DisplayName: "Test", TotalXP: 150}

	_, ok := c.Exists(learner.ID)
	assert.False(t, ok)
	c.SetExists(learner.ID, true)
	exists, ok := c.Exists(learner.ID)
	assert.True(t, ok)
	assert.True(t, exists)

	_, ok = c.GetSnapshot(learner.ID)
	assert.False(t, ok)
	c.SetSnapshot(learner)
	snap, ok := c.GetSnapshot(learner.ID)
	assert.True(t, ok)
	assert.Equal(t, int64(150), snap.TotalXP)

	c.Invalidate(learner.ID)
	_, ok = c.GetSnapshot(learner.ID)
	assert.False(t, ok, "invalidation drops the snapshot")
	exists, ok = c.Exists(learner.ID)
	assert.True(t, ok, "invalidation keeps the existence bit")
	assert.True(t, exists)
}

func TestLearnerResolverCacheIgnoresZeroID(t *testing.T) {
	c := NewLearnerResolverCache()
	c.SetExists(0, true)
	c.SetSnapshot(userdomain.Learner{})

	_, ok := c.Exists(0)
	assert.False(t, ok)
	_, ok = c.GetSnapshot(0)
	assert.False(t, ok)
}
