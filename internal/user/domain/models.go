// Package domain contains the learner record and its progress fields.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Learner is a platform user as seen by the progression engine. The
// progress columns (total XP, streak state) live on the learner row so a
// single locked read serves the streak read-modify-write.
type Learner struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Email       string       `gorm:"type:text;not null;uniqueIndex" json:"email"`
	DisplayName string       `gorm:"type:text;not null" json:"display_name"`

	TotalXP          int64      `gorm:"not null;default:0" json:"total_xp"`
	CurrentStreak    int        `gorm:"not null;default:0" json:"current_streak"`
	LongestStreak    int        `gorm:"not null;default:0" json:"longest_streak"`
	LastActivityDate *time.Time `json:"last_activity_date"`
	StreakFreezes    int        `gorm:"not null;default:0" json:"streak_freezes"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Learner) TableName() string { return "learners" }

type CreateLearnerRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

type Service interface {
	Create(ctx context.Context, req CreateLearnerRequest) (*Learner, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Learner, error)
	Exists(ctx context.Context, id snowflake.ID) (bool, error)
}

var (
	ErrLearnerNotFound = errors.New("learner_not_found")
	ErrInvalidLearner  = errors.New("invalid_learner")
	ErrInvalidEmail    = errors.New("invalid_email")
	ErrLearnerExists   = errors.New("learner_exists")
)
