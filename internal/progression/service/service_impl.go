package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	activitydomain "github.com/skillforge/skillforge/internal/activity/domain"
	"github.com/skillforge/skillforge/internal/cache"
	"github.com/skillforge/skillforge/internal/clock"
	"github.com/skillforge/skillforge/internal/config"
	eventsdomain "github.com/skillforge/skillforge/internal/events/domain"
	boarddomain "github.com/skillforge/skillforge/internal/leaderboard/domain"
	"github.com/skillforge/skillforge/internal/level"
	"github.com/skillforge/skillforge/internal/observability/logger"
	"github.com/skillforge/skillforge/internal/observability/metrics"
	"github.com/skillforge/skillforge/internal/progression/domain"
	"github.com/skillforge/skillforge/internal/streak"
	userdomain "github.com/skillforge/skillforge/internal/user/domain"
	xpdomain "github.com/skillforge/skillforge/internal/xp/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Metrics  *metrics.Metrics
	Rules    *config.ProgressionConfigHolder
	XP       xpdomain.Service
	Activity activitydomain.Service
	Outbox   eventsdomain.Outbox
	Board    boarddomain.Service
	Resolver cache.LearnerResolverCache
}

type service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	metrics  *metrics.Metrics
	rules    *config.ProgressionConfigHolder
	xp       xpdomain.Service
	activity activitydomain.Service
	outbox   eventsdomain.Outbox
	board    boarddomain.Service
	resolver cache.LearnerResolverCache
}

func NewService(p Params) domain.Service {
	return &service{
		db:       p.DB,
		log:      p.Log.Named("progression.service"),
		clock:    p.Clock,
		metrics:  p.Metrics,
		rules:    p.Rules,
		xp:       p.XP,
		activity: p.Activity,
		outbox:   p.Outbox,
		board:    p.Board,
		resolver: p.Resolver,
	}
}

func (s *service) RecordLessonCompletion(ctx context.Context, req domain.EventRequest) (*domain.Result, error) {
	rules := s.rules.Get()
	return s.recordEvent(ctx, req, xpdomain.SourceLessonComplete, rules.Awards.LessonXP, "Completed lesson")
}

func (s *service) RecordQuizPass(ctx context.Context, req domain.EventRequest) (*domain.Result, error) {
	rules := s.rules.Get()
	return s.recordEvent(ctx, req, xpdomain.SourceQuizPass, rules.Awards.QuizXP, "Passed quiz")
}

func (s *service) RecordAssessmentPass(ctx context.Context, req domain.EventRequest) (*domain.Result, error) {
	rules := s.rules.Get()
	return s.recordEvent(ctx, req, xpdomain.SourceAssessmentPass, rules.Awards.AssessmentXP, "Passed assessment")
}

// recordEvent settles one learner event. Everything an accepted event
// changes happens in a single transaction under a row lock on the
// learner, so concurrent events for the same learner serialize and each
// one sees the streak state the previous one left behind.
func (s *service) recordEvent(ctx context.Context, req domain.EventRequest, source xpdomain.Source, amount int64, description string) (*domain.Result, error) {
	if req.LearnerID == 0 {
		return nil, domain.ErrInvalidLearner
	}
	sourceID := strings.TrimSpace(req.SourceID)
	if sourceID == "" {
		return nil, domain.ErrInvalidSourceID
	}

	// Cheap duplicate fast path. The unique index remains the authority;
	// this only spares the lock on obvious replays.
	if seen, err := s.xp.HasReceived(ctx, req.LearnerID, source, sourceID); err == nil && seen {
		s.metrics.RecordDuplicateEvent(ctx, string(source))
		return s.duplicateResult(ctx, req.LearnerID)
	}

	today := clock.Today(s.clock)
	if !req.OccurredAt.IsZero() {
		today = clock.DateOf(req.OccurredAt)
	}

	var result domain.Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		learner, err := s.lockLearner(ctx, tx, req.LearnerID)
		if err != nil {
			return err
		}

		award, err := s.xp.AwardInTx(ctx, tx, xpdomain.AwardRequest{
			LearnerID:   req.LearnerID,
			Source:      source,
			SourceID:    &sourceID,
			Amount:      amount,
			Description: fmt.Sprintf("%s %s", description, sourceID),
		})
		if err != nil {
			return err
		}
		if award.Duplicate {
			result = domain.Result{
				Level:        award.Level,
				TotalXP:      award.TotalXP,
				Streak:       streakStatus(learner, today),
				StreakAction: streak.ActionMaintained,
				Duplicate:    true,
			}
			return nil
		}

		deltas := activitydomain.RecordRequest{TimeSpentMinutes: req.TimeSpentMinutes}
		switch source {
		case xpdomain.SourceLessonComplete:
			deltas.LessonsCompleted = 1
		case xpdomain.SourceQuizPass, xpdomain.SourceAssessmentPass:
			deltas.QuizzesCompleted = 1
		}

		settled, err := s.settleActivity(ctx, tx, learner, award, today, deltas)
		if err != nil {
			return err
		}
		result = *settled
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.resolver.Invalidate(req.LearnerID)
	if !result.Duplicate {
		s.board.Sync(ctx, req.LearnerID, result.TotalXP)
	}
	return &result, nil
}

func (s *service) RecordActivity(ctx context.Context, req domain.ActivityRequest) (*domain.Result, error) {
	if req.LearnerID == 0 {
		return nil, domain.ErrInvalidLearner
	}

	deltas := activitydomain.RecordRequest{
		LessonsCompleted: 1,
		XPEarned:         req.XPEarned,
		TimeSpentMinutes: req.TimeSpentMinutes,
	}
	if req.LessonsCompleted != nil {
		deltas.LessonsCompleted = *req.LessonsCompleted
	}

	today := clock.Today(s.clock)

	var result domain.Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		learner, err := s.lockLearner(ctx, tx, req.LearnerID)
		if err != nil {
			return err
		}
		settled, err := s.settleActivity(ctx, tx, learner, nil, today, deltas)
		if err != nil {
			return err
		}
		result = *settled
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.resolver.Invalidate(req.LearnerID)
	if result.BonusXP > 0 {
		s.board.Sync(ctx, req.LearnerID, result.TotalXP)
	}
	return &result, nil
}

// settleActivity folds the accepted deltas into the day rollup, advances
// the streak and pays any milestone bonus. learner is the locked row;
// award is nil for activity pings, whose XP delta rides in deltas.
func (s *service) settleActivity(
	ctx context.Context,
	tx *gorm.DB,
	learner *userdomain.Learner,
	award *xpdomain.AwardResult,
	today time.Time,
	deltas activitydomain.RecordRequest,
) (*domain.Result, error) {
	deltas.LearnerID = learner.ID
	deltas.ActivityDate = today
	if award != nil {
		deltas.XPEarned += award.XPAwarded
	}
	if err := s.activity.RecordInTx(ctx, tx, deltas); err != nil {
		return nil, err
	}

	before := streak.State{
		CurrentStreak:    learner.CurrentStreak,
		LongestStreak:    learner.LongestStreak,
		LastActivityDate: learner.LastActivityDate,
		StreakFreezes:    learner.StreakFreezes,
	}
	after, action := streak.Advance(before, today)

	var bonusXP int64
	rules := s.rules.Get()
	if action == streak.ActionExtended || action == streak.ActionContinued || action == streak.ActionStarted {
		if err := s.persistStreak(ctx, tx, learner.ID, after); err != nil {
			return nil, err
		}
		s.metrics.RecordStreakTransition(ctx, string(action))

		if milestone := rules.Milestone(after.CurrentStreak); milestone != nil && action != streak.ActionStarted {
			bonus, err := s.awardMilestone(ctx, tx, learner.ID, after.CurrentStreak, milestone, rules.FreezeCap)
			if err != nil {
				return nil, err
			}
			bonusXP = bonus
		}
	}

	result := domain.Result{
		Streak:       streakStatusFromState(after, today),
		StreakAction: action,
		BonusXP:      bonusXP,
	}
	if award != nil {
		result.XPAwarded = award.XPAwarded
		result.LeveledUp = award.LeveledUp
		result.Level = award.Level
		result.TotalXP = award.TotalXP + bonusXP
		if bonusXP > 0 {
			lv := level.For(result.TotalXP)
			result.LeveledUp = result.LeveledUp || lv.Number > result.Level
			result.Level = lv.Number
		}
	} else {
		result.TotalXP = learner.TotalXP + bonusXP
		result.Level = level.For(result.TotalXP).Number
	}

	streakBroken := action == streak.ActionStarted && before.LastActivityDate != nil
	s.emit(ctx, tx, learner.ID, action, streakBroken, &result)
	return &result, nil
}

// awardMilestone pays the streak bonus at most once per learner per
// milestone length, using the ledger's idempotency boundary with the
// streak count as the source id.
func (s *service) awardMilestone(
	ctx context.Context,
	tx *gorm.DB,
	learnerID snowflake.ID,
	streakDays int,
	milestone *config.StreakMilestone,
	freezeCap int,
) (int64, error) {
	sourceID := strconv.Itoa(streakDays)
	award, err := s.xp.AwardInTx(ctx, tx, xpdomain.AwardRequest{
		LearnerID:   learnerID,
		Source:      xpdomain.SourceStreakBonus,
		SourceID:    &sourceID,
		Amount:      milestone.BonusXP,
		Description: fmt.Sprintf("%d-day streak bonus", streakDays),
	})
	if err != nil {
		return 0, err
	}
	if award.Duplicate {
		return 0, nil
	}

	s.metrics.RecordStreakBonus(ctx, sourceID)
	logger.FromContext(ctx).Info("streak milestone reached",
		zap.Int("streak_days", streakDays),
		zap.Int64("bonus_xp", milestone.BonusXP),
	)

	if milestone.GrantsFreeze {
		err := tx.WithContext(ctx).
			Model(&userdomain.Learner{}).
			Where("id = ? AND streak_freezes < ?", learnerID, freezeCap).
			Update("streak_freezes", gorm.Expr("streak_freezes + 1")).Error
		if err != nil {
			return 0, fmt.Errorf("grant streak freeze: %w", err)
		}
	}
	return award.XPAwarded, nil
}

func (s *service) AwardStreakBonus(ctx context.Context, learnerID snowflake.ID, streakDays int) (*domain.Result, error) {
	if learnerID == 0 {
		return nil, domain.ErrInvalidLearner
	}
	if streakDays <= 0 {
		return nil, domain.ErrInvalidStreak
	}

	rules := s.rules.Get()
	milestone := rules.Milestone(streakDays)
	if milestone == nil {
		return nil, nil
	}

	var result domain.Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		learner, err := s.lockLearner(ctx, tx, learnerID)
		if err != nil {
			return err
		}
		bonus, err := s.awardMilestone(ctx, tx, learner.ID, streakDays, milestone, rules.FreezeCap)
		if err != nil {
			return err
		}

		totalXP := learner.TotalXP + bonus
		result = domain.Result{
			BonusXP:      bonus,
			LeveledUp:    level.For(totalXP).Number > level.For(learner.TotalXP).Number,
			Level:        level.For(totalXP).Number,
			TotalXP:      totalXP,
			Streak:       streakStatus(learner, clock.Today(s.clock)),
			StreakAction: streak.ActionMaintained,
			Duplicate:    bonus == 0,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.resolver.Invalidate(learnerID)
	if result.BonusXP > 0 {
		s.board.Sync(ctx, learnerID, result.TotalXP)
	}
	return &result, nil
}

func (s *service) persistStreak(ctx context.Context, tx *gorm.DB, learnerID snowflake.ID, state streak.State) error {
	err := tx.WithContext(ctx).
		Model(&userdomain.Learner{}).
		Where("id = ?", learnerID).
		Updates(map[string]interface{}{
			"current_streak":     state.CurrentStreak,
			"longest_streak":     state.LongestStreak,
			"last_activity_date": state.LastActivityDate,
			"streak_freezes":     state.StreakFreezes,
		}).Error
	if err != nil {
		return fmt.Errorf("persist streak: %w", err)
	}
	return nil
}

// lockLearner loads the learner under FOR UPDATE so concurrent events
// for the same learner serialize. SQLite locks the whole database per
// write transaction, so the clause is skipped there.
func (s *service) lockLearner(ctx context.Context, tx *gorm.DB, learnerID snowflake.ID) (*userdomain.Learner, error) {
	var learner userdomain.Learner
	q := tx.WithContext(ctx)
	if tx.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := q.First(&learner, "id = ?", learnerID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, userdomain.ErrLearnerNotFound
		}
		return nil, fmt.Errorf("lock learner: %w", err)
	}
	return &learner, nil
}

func (s *service) GetStreak(ctx context.Context, learnerID snowflake.ID) (*domain.StreakStatus, error) {
	if learnerID == 0 {
		return nil, domain.ErrInvalidLearner
	}

	today := clock.Today(s.clock)
	if cached, ok := s.resolver.GetSnapshot(learnerID); ok {
		status := streakStatus(&cached, today)
		return &status, nil
	}

	var learner userdomain.Learner
	if err := s.db.WithContext(ctx).First(&learner, "id = ?", learnerID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, userdomain.ErrLearnerNotFound
		}
		return nil, fmt.Errorf("load learner: %w", err)
	}
	s.resolver.SetSnapshot(learner)

	status := streakStatus(&learner, today)
	return &status, nil
}

func (s *service) duplicateResult(ctx context.Context, learnerID snowflake.ID) (*domain.Result, error) {
	var learner userdomain.Learner
	if err := s.db.WithContext(ctx).First(&learner, "id = ?", learnerID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, userdomain.ErrLearnerNotFound
		}
		return nil, fmt.Errorf("load learner: %w", err)
	}
	lv := level.For(learner.TotalXP)
	return &domain.Result{
		Level:        lv.Number,
		TotalXP:      learner.TotalXP,
		Streak:       streakStatus(&learner, clock.Today(s.clock)),
		StreakAction: streak.ActionMaintained,
		Duplicate:    true,
	}, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, learnerID snowflake.ID, action streak.Action, streakBroken bool, result *domain.Result) {
	payload := map[string]any{
		"xp_awarded":     result.XPAwarded,
		"bonus_xp":       result.BonusXP,
		"total_xp":       result.TotalXP,
		"level":          result.Level,
		"streak_action":  string(action),
		"current_streak": result.Streak.CurrentStreak,
	}

	eventType := eventsdomain.TypeXPAwarded
	switch {
	case result.LeveledUp:
		eventType = eventsdomain.TypeLevelUp
	case streakBroken:
		eventType = eventsdomain.TypeStreakBroken
	case action == streak.ActionContinued:
		eventType = eventsdomain.TypeFreezeConsumed
	case action == streak.ActionExtended:
		eventType = eventsdomain.TypeStreakExtended
	case result.BonusXP > 0:
		eventType = eventsdomain.TypeMilestoneBonus
	}

	if err := s.outbox.AppendInTx(ctx, tx, learnerID, eventType, payload); err != nil {
		// The event is advisory; the settled state must not roll back.
		s.log.Warn("append progression event", zap.Error(err))
	}
}

func streakStatus(learner *userdomain.Learner, today time.Time) domain.StreakStatus {
	return streakStatusFromState(streak.State{
		CurrentStreak:    learner.CurrentStreak,
		LongestStreak:    learner.LongestStreak,
		LastActivityDate: learner.LastActivityDate,
		StreakFreezes:    learner.StreakFreezes,
	}, today)
}

func streakStatusFromState(state streak.State, today time.Time) domain.StreakStatus {
	return domain.StreakStatus{
		CurrentStreak:    state.CurrentStreak,
		LongestStreak:    state.LongestStreak,
		LastActivityDate: state.LastActivityDate,
		StreakFreezes:    state.StreakFreezes,
		ActiveToday:      state.LastActivityDate != nil && state.LastActivityDate.Equal(today),
	}
}
