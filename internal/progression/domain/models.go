// Package domain defines the progression façade: one call per learner
// event that settles XP, daily activity and streak state together.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/skillforge/skillforge/internal/streak"
)

// EventRequest is one learner event arriving from the course platform.
// OccurredAt is optional; the server clock is used when it is zero.
type EventRequest struct {
	LearnerID        snowflake.ID
	SourceID         string
	OccurredAt       time.Time
	TimeSpentMinutes int64
}

// ActivityRequest reports a qualifying action outside the scored event
// endpoints. The deltas fold into the learner's day rollup without a
// ledger entry; LessonsCompleted is optional and defaults to one.
type ActivityRequest struct {
	LearnerID        snowflake.ID
	LessonsCompleted *int64
	XPEarned         int64
	TimeSpentMinutes int64
}

// Result reports everything one accepted event changed.
type Result struct {
	XPAwarded    int64         `json:"xp_awarded"`
	BonusXP      int64         `json:"bonus_xp"`
	LeveledUp    bool          `json:"leveled_up"`
	Level        int           `json:"level"`
	TotalXP      int64         `json:"total_xp"`
	Streak       StreakStatus  `json:"streak"`
	StreakAction streak.Action `json:"streak_action"`
	Duplicate    bool          `json:"duplicate"`
}

// StreakStatus is the read model for a learner's streak.
type StreakStatus struct {
	CurrentStreak    int        `json:"current_streak"`
	LongestStreak    int        `json:"longest_streak"`
	LastActivityDate *time.Time `json:"last_activity_date,omitempty"`
	StreakFreezes    int        `json:"streak_freezes"`
	ActiveToday      bool       `json:"active_today"`
}

type Service interface {
	RecordLessonCompletion(ctx context.Context, req EventRequest) (*Result, error)
	RecordQuizPass(ctx context.Context, req EventRequest) (*Result, error)
	RecordAssessmentPass(ctx context.Context, req EventRequest) (*Result, error)
	// RecordActivity folds ad-hoc activity deltas into the day rollup and
	// advances the streak, without writing a ledger entry.
	RecordActivity(ctx context.Context, req ActivityRequest) (*Result, error)
	// AwardStreakBonus pays the configured bonus for the given streak
	// length directly. Returns nil when no milestone is configured for
	// that length; an already-paid milestone resolves as a duplicate.
	AwardStreakBonus(ctx context.Context, learnerID snowflake.ID, streakDays int) (*Result, error)
	GetStreak(ctx context.Context, learnerID snowflake.ID) (*StreakStatus, error)
}

var (
	ErrInvalidLearner  = errors.New("invalid_learner")
	ErrInvalidSourceID = errors.New("invalid_source_id")
	ErrInvalidStreak   = errors.New("invalid_streak")
)
