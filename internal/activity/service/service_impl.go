package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/skillforge/skillforge/internal/activity/domain"
	"github.com/skillforge/skillforge/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func NewService(p Params) domain.Service {
	return &service{
		db:    p.DB,
		log:   p.Log.Named("activity.service"),
		genID: p.GenID,
	}
}

func validate(req domain.RecordRequest) error {
	if req.LearnerID == 0 {
		return domain.ErrInvalidLearner
	}
	if req.ActivityDate.IsZero() {
		return domain.ErrInvalidDate
	}
	if req.LessonsCompleted < 0 || req.QuizzesCompleted < 0 || req.XPEarned < 0 || req.TimeSpentMinutes < 0 {
		return domain.ErrNegativeDelta
	}
	return nil
}

func (s *service) Record(ctx context.Context, req domain.RecordRequest) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.RecordInTx(ctx, tx, req)
	})
}

// RecordInTx upserts the day row with additive counters. The update arm
// adds the incoming deltas to the stored values, so concurrent recorders
// never lose each other's increments.
func (s *service) RecordInTx(ctx context.Context, tx *gorm.DB, req domain.RecordRequest) error {
	if err := validate(req); err != nil {
		return err
	}

	row := domain.DailyActivity{
		ID:               s.genID.Generate(),
		LearnerID:        req.LearnerID,
		ActivityDate:     clock.DateOf(req.ActivityDate),
		LessonsCompleted: req.LessonsCompleted,
		QuizzesCompleted: req.QuizzesCompleted,
		XPEarned:         req.XPEarned,
		TimeSpentMinutes: req.TimeSpentMinutes,
	}

	err := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "learner_id"},
			{Name: "activity_date"},
		},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"lessons_completed":  gorm.Expr("daily_activities.lessons_completed + ?", req.LessonsCompleted),
			"quizzes_completed":  gorm.Expr("daily_activities.quizzes_completed + ?", req.QuizzesCompleted),
			"xp_earned":          gorm.Expr("daily_activities.xp_earned + ?", req.XPEarned),
			"time_spent_minutes": gorm.Expr("daily_activities.time_spent_minutes + ?", req.TimeSpentMinutes),
			"updated_at":         gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert daily activity: %w", err)
	}
	return nil
}

func (s *service) Range(ctx context.Context, req domain.RangeRequest) ([]domain.DailyActivity, error) {
	if req.LearnerID == 0 {
		return nil, domain.ErrInvalidLearner
	}
	if req.From.IsZero() || req.To.IsZero() || req.To.Before(req.From) {
		return nil, domain.ErrInvalidRange
	}

	var rows []domain.DailyActivity
	err := s.db.WithContext(ctx).
		Where("learner_id = ? AND activity_date BETWEEN ? AND ?",
			req.LearnerID, clock.DateOf(req.From), clock.DateOf(req.To)).
		Order("activity_date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list daily activities: %w", err)
	}
	return rows, nil
}
