package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	userdomain "github.com/skillforge/skillforge/internal/user/domain"
	"github.com/skillforge/skillforge/pkg/db"
	"github.com/skillforge/skillforge/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  repository.Repository[userdomain.Learner]
}

func NewService(p Params) userdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("user.service"),
		genID: p.GenID,
		repo:  repository.ProvideStore[userdomain.Learner](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req userdomain.CreateLearnerRequest) (*userdomain.Learner, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, userdomain.ErrInvalidEmail
	}
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = email[:strings.Index(email, "@")]
	}

	learner := &userdomain.Learner{
		ID:          s.genID.Generate(),
		Email:       email,
		DisplayName: displayName,
	}
	if err := s.repo.Create(ctx, learner); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, userdomain.ErrLearnerExists
		}
		return nil, err
	}
	return learner, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*userdomain.Learner, error) {
	if id == 0 {
		return nil, userdomain.ErrInvalidLearner
	}
	learner, err := s.repo.FindOne(ctx, &userdomain.Learner{ID: id})
	if err != nil {
		return nil, err
	}
	if learner == nil {
		return nil, userdomain.ErrLearnerNotFound
	}
	return learner, nil
}

func (s *Service) Exists(ctx context.Context, id snowflake.ID) (bool, error) {
	if id == 0 {
		return false, nil
	}
	var exists bool
	err := s.db.WithContext(ctx).Raw(
		`SELECT EXISTS(SELECT 1 FROM learners WHERE id = ?)`,
		id,
	).Scan(&exists).Error
	if err != nil {
		return false, err
	}
	return exists, nil
}
