package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ProgressionEvent is the outbox row written in the same transaction as
// the state change it describes. A relay drains unpublished rows later.
type ProgressionEvent struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	LearnerID   snowflake.ID      `gorm:"not null;index" json:"learner_id"`
	EventType   string            `gorm:"type:text;not null" json:"event_type"`
	Payload     datatypes.JSONMap `gorm:"type:jsonb;not null" json:"payload"`
	Published   bool              `gorm:"not null;default:false;index" json:"published"`
	PublishedAt *time.Time        `json:"published_at,omitempty"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (ProgressionEvent) TableName() string { return "progression_events" }

const (
	TypeXPAwarded      = "progression.xp_awarded"
	TypeLevelUp        = "progression.level_up"
	TypeStreakExtended = "progression.streak_extended"
	TypeStreakBroken   = "progression.streak_broken"
	TypeMilestoneBonus = "progression.milestone_bonus"
	TypeFreezeConsumed = "progression.freeze_consumed"
)

type Outbox interface {
	// AppendInTx stages an event inside the caller's transaction.
	AppendInTx(ctx context.Context, tx *gorm.DB, learnerID snowflake.ID, eventType string, payload map[string]any) error
	// Drain fetches up to limit unpublished events in insertion order.
	Drain(ctx context.Context, limit int) ([]ProgressionEvent, error)
	MarkPublished(ctx context.Context, ids []snowflake.ID) error
}
