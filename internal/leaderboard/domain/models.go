package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/skillforge/skillforge/internal/level"
)

// Entry is one leaderboard row, ranked by total XP.
type Entry struct {
	Rank        int64        `json:"rank"`
	LearnerID   snowflake.ID `json:"learner_id"`
	DisplayName string       `json:"display_name"`
	TotalXP     int64        `json:"total_xp"`
	Level       int          `json:"level"`
	Tier        level.Tier   `json:"tier"`
}

type Service interface {
	Top(ctx context.Context, limit int) ([]Entry, error)
	Rank(ctx context.Context, learnerID snowflake.ID) (int64, error)
	// Sync pushes a learner's total into the ranking cache. Best effort;
	// the database remains the source of truth.
	Sync(ctx context.Context, learnerID snowflake.ID, totalXP int64)
}

var (
	ErrInvalidLimit   = errors.New("invalid_limit")
	ErrInvalidLearner = errors.New("invalid_learner")
	ErrNotRanked      = errors.New("learner_not_ranked")
)
