package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/skillforge/skillforge/internal/events/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type outbox struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func NewOutbox(p Params) domain.Outbox {
	return &outbox{
		db:    p.DB,
		log:   p.Log.Named("events.outbox"),
		genID: p.GenID,
	}
}

func (o *outbox) AppendInTx(ctx context.Context, tx *gorm.DB, learnerID snowflake.ID, eventType string, payload map[string]any) error {
	row := domain.ProgressionEvent{
		ID:        o.genID.Generate(),
		LearnerID: learnerID,
		EventType: eventType,
		Payload:   datatypes.JSONMap(payload),
	}
	if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("append progression event: %w", err)
	}
	return nil
}

func (o *outbox) Drain(ctx context.Context, limit int) ([]domain.ProgressionEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []domain.ProgressionEvent
	err := o.db.WithContext(ctx).
		Where("published = ?", false).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("drain progression events: %w", err)
	}
	return rows, nil
}

func (o *outbox) MarkPublished(ctx context.Context, ids []snowflake.ID) error {
	if len(ids) == 0 {
		return nil
	}
	now := time.Now().UTC()
	err := o.db.WithContext(ctx).
		Model(&domain.ProgressionEvent{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"published":    true,
			"published_at": now,
		}).Error
	if err != nil {
		return fmt.Errorf("mark progression events published: %w", err)
	}
	return nil
}
