// Package domain contains the append-only XP ledger model.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/skillforge/skillforge/internal/level"
	"github.com/skillforge/skillforge/pkg/db/pagination"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Source enumerates the event kinds that may earn XP.
type Source string

const (
	SourceLessonComplete Source = "LESSON_COMPLETE"
	SourceQuizPass       Source = "QUIZ_PASS"
	SourceAssessmentPass Source = "ASSESSMENT_PASS"
	SourceStreakBonus    Source = "STREAK_BONUS"
	// SourceAdminGrant is the only source allowed to omit a source id.
	SourceAdminGrant Source = "ADMIN_GRANT"
)

// Valid reports whether the source is a known event kind.
func (s Source) Valid() bool {
	switch s {
	case SourceLessonComplete, SourceQuizPass, SourceAssessmentPass, SourceStreakBonus, SourceAdminGrant:
		return true
	default:
		return false
	}
}

// Transaction is one immutable XP grant. The (learner_id, source,
// source_id) tuple is the idempotency boundary: at most one row may exist
// per distinct triggering event.
type Transaction struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	LearnerID   snowflake.ID      `gorm:"not null;index;uniqueIndex:ux_xp_transactions_event,priority:1" json:"learner_id"`
	Amount      int64             `gorm:"not null" json:"amount"`
	Source      Source            `gorm:"type:text;not null;uniqueIndex:ux_xp_transactions_event,priority:2" json:"source"`
	SourceID    *string           `gorm:"type:text;uniqueIndex:ux_xp_transactions_event,priority:3" json:"source_id"`
	Description string            `gorm:"type:text;not null" json:"description"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Transaction) TableName() string { return "xp_transactions" }

type AwardRequest struct {
	LearnerID   snowflake.ID
	Source      Source
	SourceID    *string
	Amount      int64
	Description string
	Metadata    map[string]any
}

// AwardResult reports the effect of one award attempt. A deduplicated
// event has XPAwarded == 0 and Duplicate == true; it is not an error.
type AwardResult struct {
	XPAwarded int64 `json:"xp_awarded"`
	LeveledUp bool  `json:"leveled_up"`
	Level     int   `json:"level"`
	TotalXP   int64 `json:"total_xp"`
	Duplicate bool  `json:"-"`
}

type Info struct {
	TotalXP            int64         `json:"total_xp"`
	Level              int           `json:"level"`
	LevelName          string        `json:"level_name"`
	XPToNextLevel      int64         `json:"xp_to_next_level"`
	LevelProgress      int           `json:"level_progress"`
	Tier               level.Tier    `json:"tier"`
	TierConfig         []level.Level `json:"tier_config"`
	RecentTransactions []Transaction `json:"recent_transactions"`
}

type HistoryRequest struct {
	LearnerID snowflake.ID
	Source    Source
	pagination.Pagination
}

type HistoryResponse struct {
	pagination.PageInfo
	Transactions []Transaction `json:"transactions"`
}

type Service interface {
	// Award grants XP in its own transaction.
	Award(ctx context.Context, req AwardRequest) (*AwardResult, error)
	// AwardInTx grants XP inside a caller-managed transaction so the
	// façade can bundle ledger, daily activity and streak writes.
	AwardInTx(ctx context.Context, tx *gorm.DB, req AwardRequest) (*AwardResult, error)
	HasReceived(ctx context.Context, learnerID snowflake.ID, source Source, sourceID string) (bool, error)
	GetInfo(ctx context.Context, learnerID snowflake.ID, historyLimit int) (*Info, error)
	History(ctx context.Context, req HistoryRequest) (HistoryResponse, error)
}

var (
	ErrInvalidAmount   = errors.New("invalid_amount")
	ErrInvalidSource   = errors.New("invalid_source")
	ErrInvalidSourceID = errors.New("invalid_source_id")
	ErrInvalidLearner  = errors.New("invalid_learner")
)
