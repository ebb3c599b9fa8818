package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	userdomain "github.com/skillforge/skillforge/internal/user/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (userdomain.Service, *snowflake.Node) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&userdomain.Learner{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(Params{DB: db, Log: zap.NewNop(), GenID: node}), node
}

func TestCreateLearner(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	learner, err := svc.Create(ctx, userdomain.CreateLearnerRequest{
		Email:       "Ada@Example.com",
		DisplayName: "Ada",
	})
	require.NoError(t, err)
	assert.NotZero(t, learner.ID)
	assert.Equal(t, "ada@example.com", learner.Email, "email is normalized")
	assert.Equal(t, "Ada", learner.DisplayName)
	assert.Equal(t, int64(0), learner.TotalXP)
	assert.Equal(t, 0, learner.CurrentStreak)
}

func TestCreateLearnerDefaultsDisplayName(t *testing.T) {
	svc, _ := newTestService(t)

	learner, err := svc.Create(context.Background(), userdomain.CreateLearnerRequest{
		Email: "grace@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "grace", learner.DisplayName, "falls back to the email local part")
}

func TestCreateLearnerRejectsBadEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, userdomain.CreateLearnerRequest{Email: ""})
	assert.ErrorIs(t, err, userdomain.ErrInvalidEmail)

	_, err = svc.Create(ctx, userdomain.CreateLearnerRequest{Email: "not-an-email"})
	assert.ErrorIs(t, err, userdomain.ErrInvalidEmail)
}

func TestCreateLearnerDuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, userdomain.CreateLearnerRequest{Email: "dup@example.com"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, userdomain.CreateLearnerRequest{Email: "DUP@example.com"})
	assert.ErrorIs(t, err, userdomain.ErrLearnerExists)
}

func TestGetByIDAndExists(t *testing.T) {
	svc, node := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, userdomain.CreateLearnerRequest{Email: "carol@example.com"})
	require.NoError(t, err)

	got, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Email, got.Email)

	_, err = svc.GetByID(ctx, 0)
	assert.ErrorIs(t, err, userdomain.ErrInvalidLearner)

	_, err = svc.GetByID(ctx, node.Generate())
	assert.ErrorIs(t, err, userdomain.ErrLearnerNotFound)

	exists, err := svc.Exists(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = svc.Exists(ctx, node.Generate())
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = svc.Exists(ctx, 0)
	require.NoError(t, err)
	assert.False(t, exists)
}
