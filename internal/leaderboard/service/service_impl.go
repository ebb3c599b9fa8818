package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/skillforge/skillforge/internal/leaderboard/domain"
	"github.com/skillforge/skillforge/internal/level"
	userdomain "github.com/skillforge/skillforge/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// keyLeaderboardXP is the sorted set holding learner_id -> total XP.
const keyLeaderboardXP = "skillforge:leaderboard:xp"

const maxTopLimit = 100

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
	RDB *redis.Client `optional:"true"`
}

type service struct {
	db  *gorm.DB
	log *zap.Logger
	rdb *redis.Client
}

// NewService returns the XP leaderboard. With redis configured, rankings
// come from a sorted set kept in sync on every award; otherwise every
// query falls back to the learners table.
func NewService(p Params) domain.Service {
	return &service{
		db:  p.DB,
		log: p.Log.Named("leaderboard.service"),
		rdb: p.RDB,
	}
}

func (s *service) Top(ctx context.Context, limit int) ([]domain.Entry, error) {
	if limit <= 0 {
		return nil, domain.ErrInvalidLimit
	}
	if limit > maxTopLimit {
		limit = maxTopLimit
	}

	if s.rdb != nil {
		entries, err := s.topFromRedis(ctx, limit)
		if err == nil && len(entries) > 0 {
			return entries, nil
		}
		if err != nil {
			s.log.Warn("leaderboard cache read failed, falling back to database", zap.Error(err))
		}
	}
	return s.topFromDB(ctx, limit)
}

func (s *service) topFromRedis(ctx context.Context, limit int) ([]domain.Entry, error) {
	members, err := s.rdb.ZRevRangeWithScores(ctx, keyLeaderboardXP, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}

	ids := make([]snowflake.ID, 0, len(members))
	for _, m := range members {
		raw, ok := m.Member.(string)
		if !ok {
			continue
		}
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, snowflake.ID(parsed))
	}

	var learners []userdomain.Learner
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&learners).Error; err != nil {
		return nil, fmt.Errorf("load ranked learners: %w", err)
	}
	names := make(map[snowflake.ID]string, len(learners))
	for _, l := range learners {
		names[l.ID] = l.DisplayName
	}

	entries := make([]domain.Entry, 0, len(members))
	for i, m := range members {
		raw, _ := m.Member.(string)
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		id := snowflake.ID(parsed)
		totalXP := int64(m.Score)
		lv := level.For(totalXP)
		entries = append(entries, domain.Entry{
			Rank:        int64(i + 1),
			LearnerID:   id,
			DisplayName: names[id],
			TotalXP:     totalXP,
			Level:       lv.Number,
			Tier:        lv.Tier,
		})
	}
	return entries, nil
}

func (s *service) topFromDB(ctx context.Context, limit int) ([]domain.Entry, error) {
	var learners []userdomain.Learner
	err := s.db.WithContext(ctx).
		Order("total_xp DESC, id ASC").
		Limit(limit).
		Find(&learners).Error
	if err != nil {
		return nil, fmt.Errorf("list top learners: %w", err)
	}

	entries := make([]domain.Entry, 0, len(learners))
	for i, l := range learners {
		lv := level.For(l.TotalXP)
		entries = append(entries, domain.Entry{
			Rank:        int64(i + 1),
			LearnerID:   l.ID,
			DisplayName: l.DisplayName,
			TotalXP:     l.TotalXP,
			Level:       lv.Number,
			Tier:        lv.Tier,
		})
	}
	return entries, nil
}

func (s *service) Rank(ctx context.Context, learnerID snowflake.ID) (int64, error) {
	if learnerID == 0 {
		return 0, domain.ErrInvalidLearner
	}

	if s.rdb != nil {
		rank, err := s.rdb.ZRevRank(ctx, keyLeaderboardXP, learnerID.String()).Result()
		if err == nil {
			return rank + 1, nil
		}
		if !errors.Is(err, redis.Nil) {
			s.log.Warn("leaderboard rank lookup failed, falling back to database", zap.Error(err))
		}
	}

	var learner userdomain.Learner
	if err := s.db.WithContext(ctx).First(&learner, "id = ?", learnerID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, domain.ErrNotRanked
		}
		return 0, fmt.Errorf("load learner: %w", err)
	}

	var ahead int64
	err := s.db.WithContext(ctx).
		Model(&userdomain.Learner{}).
		Where("total_xp > ?", learner.TotalXP).
		Count(&ahead).Error
	if err != nil {
		return 0, fmt.Errorf("count learners ahead: %w", err)
	}
	return ahead + 1, nil
}

func (s *service) Sync(ctx context.Context, learnerID snowflake.ID, totalXP int64) {
	if s.rdb == nil || learnerID == 0 {
		return
	}
	err := s.rdb.ZAdd(ctx, keyLeaderboardXP, redis.Z{
		Score:  float64(totalXP),
		Member: learnerID.String(),
	}).Err()
	if err != nil {
		s.log.Warn("leaderboard sync failed", zap.Error(err))
	}
}
