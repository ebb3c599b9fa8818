package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/skillforge/skillforge/internal/leaderboard/domain"
	userdomain "github.com/skillforge/skillforge/internal/user/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// All tests here run without redis, exercising the database fallback.

func newTestService(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&userdomain.Learner{}))
	return NewService(Params{DB: db, Log: zap.NewNop()}), db
}

func seedLearners(t *testing.T, db *gorm.DB, totals ...int64) []userdomain.Learner {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	learners := make([]userdomain.Learner, 0, len(totals))
	for i, total := range totals {
		l := userdomain.Learner{
			ID:          node.Generate(),
			Email:       fmt.Sprintf("learner-%d@example.com", i),
			DisplayName: fmt.Sprintf("Learner %d", i),
			TotalXP:     total,
		}
		require.NoError(t, db.Create(&l).Error)
		learners = append(learners, l)
	}
	return learners
}

func TestTopFallsBackToDatabase(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedLearners(t, db, 150, 4200, 700)

	entries, err := svc.Top(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, int64(1), entries[0].Rank)
	assert.Equal(t, int64(4200), entries[0].TotalXP)
	assert.Equal(t, 11, entries[0].Level)
	assert.Equal(t, "Learner 1", entries[0].DisplayName)

	assert.Equal(t, int64(2), entries[1].Rank)
	assert.Equal(t, int64(700), entries[1].TotalXP)
}

func TestTopValidatesLimit(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Top(context.Background(), 0)
	assert.ErrorIs(t, err, domain.ErrInvalidLimit)
}

func TestTopTieBreaksOnID(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	learners := seedLearners(t, db, 500, 500)

	entries, err := svc.Top(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, learners[0].ID, entries[0].LearnerID, "equal totals rank by insertion order")
}

func TestRankFallsBackToDatabase(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	learners := seedLearners(t, db, 150, 4200, 700)

	rank, err := svc.Rank(ctx, learners[1].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rank)

	rank, err = svc.Rank(ctx, learners[0].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), rank)

	_, err = svc.Rank(ctx, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidLearner)

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	_, err = svc.Rank(ctx, node.Generate())
	assert.ErrorIs(t, err, domain.ErrNotRanked)
}

func TestSyncWithoutRedisIsNoop(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	learners := seedLearners(t, db, 100)

	// Must not panic or touch the learners table.
	svc.Sync(ctx, learners[0].ID, 100)

	var stored userdomain.Learner
	require.NoError(t, db.First(&stored, "id = ?", learners[0].ID).Error)
	assert.Equal(t, int64(100), stored.TotalXP)
}
