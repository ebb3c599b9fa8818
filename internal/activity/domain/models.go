package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// DailyActivity is the per-learner per-day rollup. One row per
// (learner_id, activity_date); counters only ever grow.
type DailyActivity struct {
	ID               snowflake.ID `gorm:"primaryKey" json:"id"`
	LearnerID        snowflake.ID `gorm:"not null;uniqueIndex:ux_daily_activities_day,priority:1" json:"learner_id"`
	ActivityDate     time.Time    `gorm:"type:date;not null;uniqueIndex:ux_daily_activities_day,priority:2" json:"activity_date"`
	LessonsCompleted int64        `gorm:"not null;default:0" json:"lessons_completed"`
	QuizzesCompleted int64        `gorm:"not null;default:0" json:"quizzes_completed"`
	XPEarned         int64        `gorm:"not null;default:0" json:"xp_earned"`
	TimeSpentMinutes int64        `gorm:"not null;default:0" json:"time_spent_minutes"`
	CreatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (DailyActivity) TableName() string { return "daily_activities" }

// RecordRequest carries the deltas to fold into the learner's day row.
// Zero-valued deltas are allowed; negative ones are not.
type RecordRequest struct {
	LearnerID        snowflake.ID
	ActivityDate     time.Time
	LessonsCompleted int64
	QuizzesCompleted int64
	XPEarned         int64
	TimeSpentMinutes int64
}

type RangeRequest struct {
	LearnerID snowflake.ID
	From      time.Time
	To        time.Time
}

type Service interface {
	Record(ctx context.Context, req RecordRequest) error
	// RecordInTx folds the deltas inside a caller-managed transaction.
	RecordInTx(ctx context.Context, tx *gorm.DB, req RecordRequest) error
	Range(ctx context.Context, req RangeRequest) ([]DailyActivity, error)
}

var (
	ErrInvalidLearner = errors.New("invalid_learner")
	ErrInvalidDate    = errors.New("invalid_activity_date")
	ErrNegativeDelta  = errors.New("negative_activity_delta")
	ErrInvalidRange   = errors.New("invalid_date_range")
)
