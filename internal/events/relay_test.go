package events

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/skillforge/skillforge/internal/events/domain"
	eventsservice "github.com/skillforge/skillforge/internal/events/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestRelayWithoutRedisStillDrainsOutbox(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.ProgressionEvent{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	ob := eventsservice.NewOutbox(eventsservice.Params{DB: db, Log: zap.NewNop(), GenID: node})

	ctx := context.Background()
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return ob.AppendInTx(ctx, tx, 42, domain.TypeXPAwarded, map[string]any{"xp_awarded": 50})
	}))

	relay := NewRelay(ob, nil, zap.NewNop())
	require.NoError(t, relay.RunOnce(ctx))

	rows, err := ob.Drain(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, rows, "events are marked published so the table does not grow")
}

func TestRelayRunOnceEmptyOutbox(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.ProgressionEvent{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	ob := eventsservice.NewOutbox(eventsservice.Params{DB: db, Log: zap.NewNop(), GenID: node})

	relay := NewRelay(ob, nil, zap.NewNop())
	assert.NoError(t, relay.RunOnce(context.Background()))
}
