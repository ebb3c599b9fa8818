package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/skillforge/skillforge/internal/level"
	"github.com/skillforge/skillforge/internal/observability/logger"
	"github.com/skillforge/skillforge/internal/observability/metrics"
	userdomain "github.com/skillforge/skillforge/internal/user/domain"
	"github.com/skillforge/skillforge/internal/xp/domain"
	"github.com/skillforge/skillforge/pkg/db"
	"github.com/skillforge/skillforge/pkg/db/option"
	"github.com/skillforge/skillforge/pkg/db/pagination"
	"github.com/skillforge/skillforge/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Metrics *metrics.Metrics
	GenID   *snowflake.Node
}

type service struct {
	db      *gorm.DB
	log     *zap.Logger
	metrics *metrics.Metrics
	genID   *snowflake.Node
	repo    repository.Repository[domain.Transaction]
}

func NewService(p Params) domain.Service {
	return &service{
		db:      p.DB,
		log:     p.Log.Named("xp.service"),
		metrics: p.Metrics,
		genID:   p.GenID,
		repo:    repository.ProvideStore[domain.Transaction](p.DB),
	}
}

func validate(req domain.AwardRequest) error {
	if req.LearnerID == 0 {
		return domain.ErrInvalidLearner
	}
	if !req.Source.Valid() {
		return domain.ErrInvalidSource
	}
	if req.Amount <= 0 {
		return domain.ErrInvalidAmount
	}
	if req.SourceID != nil && *req.SourceID == "" {
		return domain.ErrInvalidSourceID
	}
	if req.SourceID == nil && req.Source != domain.SourceAdminGrant {
		return domain.ErrInvalidSourceID
	}
	return nil
}

func (s *service) Award(ctx context.Context, req domain.AwardRequest) (*domain.AwardResult, error) {
	var result *domain.AwardResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = s.AwardInTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AwardInTx inserts the ledger row and bumps the learner's total inside
// the caller's transaction. The unique index on (learner_id, source,
// source_id) is the sole idempotency authority: a conflicting insert
// affects zero rows and the attempt resolves as a duplicate.
func (s *service) AwardInTx(ctx context.Context, tx *gorm.DB, req domain.AwardRequest) (*domain.AwardResult, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	record := domain.Transaction{
		ID:          s.genID.Generate(),
		LearnerID:   req.LearnerID,
		Amount:      req.Amount,
		Source:      req.Source,
		SourceID:    req.SourceID,
		Description: req.Description,
		Metadata:    datatypes.JSONMap(req.Metadata),
	}

	inserted, err := s.insertOnce(ctx, tx, record)
	if err != nil {
		return nil, err
	}

	var learner userdomain.Learner
	if !inserted {
		s.metrics.RecordDuplicateEvent(ctx, string(req.Source))
		logger.FromContext(ctx).Debug("duplicate xp event ignored",
			zap.String("source", string(req.Source)),
			zap.Stringp("source_id", req.SourceID),
		)
		if err := tx.WithContext(ctx).First(&learner, "id = ?", req.LearnerID).Error; err != nil {
			return nil, fmt.Errorf("load learner: %w", err)
		}
		lv := level.For(learner.TotalXP)
		return &domain.AwardResult{
			XPAwarded: 0,
			Level:     lv.Number,
			TotalXP:   learner.TotalXP,
			Duplicate: true,
		}, nil
	}

	if err := tx.WithContext(ctx).
		Model(&userdomain.Learner{}).
		Where("id = ?", req.LearnerID).
		Update("total_xp", gorm.Expr("total_xp + ?", req.Amount)).Error; err != nil {
		return nil, fmt.Errorf("increment total xp: %w", err)
	}
	if err := tx.WithContext(ctx).First(&learner, "id = ?", req.LearnerID).Error; err != nil {
		return nil, fmt.Errorf("load learner: %w", err)
	}

	before := level.For(learner.TotalXP - req.Amount)
	after := level.For(learner.TotalXP)

	s.metrics.RecordXPAward(ctx, string(req.Source))
	logger.FromContext(ctx).Info("xp awarded",
		zap.Int64("amount", req.Amount),
		zap.String("source", string(req.Source)),
		zap.Int64("total_xp", learner.TotalXP),
		zap.Bool("leveled_up", after.Number > before.Number),
	)

	return &domain.AwardResult{
		XPAwarded: req.Amount,
		LeveledUp: after.Number > before.Number,
		Level:     after.Number,
		TotalXP:   learner.TotalXP,
	}, nil
}

// insertOnce reports whether the row was actually written. Postgres gets
// a DO NOTHING clause scoped to the partial index; other dialects fall
// back to catching the duplicate-key error.
func (s *service) insertOnce(ctx context.Context, tx *gorm.DB, record domain.Transaction) (bool, error) {
	switch tx.Dialector.Name() {
	case "postgres":
		res := tx.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "learner_id"},
				{Name: "source"},
				{Name: "source_id"},
			},
			TargetWhere: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "source_id IS NOT NULL"},
			}},
			DoNothing: true,
		}).Create(&record)
		if res.Error != nil {
			return false, fmt.Errorf("insert xp transaction: %w", res.Error)
		}
		return res.RowsAffected > 0, nil
	default:
		if err := tx.WithContext(ctx).Create(&record).Error; err != nil {
			if db.IsDuplicateKeyErr(err) {
				return false, nil
			}
			return false, fmt.Errorf("insert xp transaction: %w", err)
		}
		return true, nil
	}
}

func (s *service) HasReceived(ctx context.Context, learnerID snowflake.ID, source domain.Source, sourceID string) (bool, error) {
	var exists bool
	err := s.db.WithContext(ctx).
		Raw("SELECT EXISTS (SELECT 1 FROM xp_transactions WHERE learner_id = ? AND source = ? AND source_id = ?)",
			learnerID, source, sourceID).
		Scan(&exists).Error
	if err != nil {
		return false, fmt.Errorf("check xp transaction: %w", err)
	}
	return exists, nil
}

func (s *service) GetInfo(ctx context.Context, learnerID snowflake.ID, historyLimit int) (*domain.Info, error) {
	if learnerID == 0 {
		return nil, domain.ErrInvalidLearner
	}

	var learner userdomain.Learner
	if err := s.db.WithContext(ctx).First(&learner, "id = ?", learnerID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, userdomain.ErrLearnerNotFound
		}
		return nil, fmt.Errorf("load learner: %w", err)
	}

	if historyLimit <= 0 || historyLimit > 100 {
		historyLimit = 10
	}
	var recent []domain.Transaction
	if err := s.db.WithContext(ctx).
		Where("learner_id = ?", learnerID).
		Order("created_at DESC").
		Limit(historyLimit).
		Find(&recent).Error; err != nil {
		return nil, fmt.Errorf("load recent transactions: %w", err)
	}

	lv := level.For(learner.TotalXP)
	return &domain.Info{
		TotalXP:            learner.TotalXP,
		Level:              lv.Number,
		LevelName:          lv.Name,
		XPToNextLevel:      level.XPToNext(learner.TotalXP),
		LevelProgress:      level.Progress(learner.TotalXP),
		Tier:               lv.Tier,
		TierConfig:         level.Table(),
		RecentTransactions: recent,
	}, nil
}

func (s *service) History(ctx context.Context, req domain.HistoryRequest) (domain.HistoryResponse, error) {
	if req.LearnerID == 0 {
		return domain.HistoryResponse{}, domain.ErrInvalidLearner
	}
	req.Pagination = req.Pagination.Normalize(100)

	query := s.db.WithContext(ctx).
		Model(&domain.Transaction{}).
		Where("learner_id = ?", req.LearnerID)
	if req.Source != "" {
		if !req.Source.Valid() {
			return domain.HistoryResponse{}, domain.ErrInvalidSource
		}
		query = query.Where("source = ?", req.Source)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return domain.HistoryResponse{}, fmt.Errorf("count transactions: %w", err)
	}

	var rows []domain.Transaction
	if err := option.ApplyPagination(req.Pagination).Apply(
		query.Order("created_at DESC"),
	).Find(&rows).Error; err != nil {
		return domain.HistoryResponse{}, fmt.Errorf("list transactions: %w", err)
	}

	return domain.HistoryResponse{
		PageInfo:     pagination.BuildPageInfo(total, req.Pagination),
		Transactions: rows,
	}, nil
}
