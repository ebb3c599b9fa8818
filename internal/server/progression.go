package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	progressiondomain "github.com/skillforge/skillforge/internal/progression/domain"
)

type progressionEventRequest struct {
	LearnerID        snowflake.ID `json:"learner_id"`
	OccurredAt       time.Time    `json:"occurred_at"`
	TimeSpentMinutes int64        `json:"time_spent_minutes"`
}

type activityPingRequest struct {
	LearnerID        snowflake.ID `json:"learner_id"`
	LessonsCompleted *int64       `json:"lessons_completed"`
	XPEarned         int64        `json:"xp_earned"`
	TimeSpentMinutes int64        `json:"time_spent_minutes"`
}

type streakBonusRequest struct {
	LearnerID snowflake.ID `json:"learner_id"`
}

func (s *Server) CompleteLesson(c *gin.Context) {
	s.ingestEvent(c, "lessonId", s.progressionSvc.RecordLessonCompletion)
}

func (s *Server) PassQuiz(c *gin.Context) {
	s.ingestEvent(c, "quizId", s.progressionSvc.RecordQuizPass)
}

func (s *Server) PassAssessment(c *gin.Context) {
	s.ingestEvent(c, "assessmentId", s.progressionSvc.RecordAssessmentPass)
}

func (s *Server) ingestEvent(
	c *gin.Context,
	param string,
	record func(ctx context.Context, req progressiondomain.EventRequest) (*progressiondomain.Result, error),
) {
	var req progressionEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if ok, err := s.ensureLearner(c, req.LearnerID); err != nil || !ok {
		return
	}

	result, err := record(c.Request.Context(), progressiondomain.EventRequest{
		LearnerID:        req.LearnerID,
		SourceID:         c.Param(param),
		OccurredAt:       req.OccurredAt,
		TimeSpentMinutes: req.TimeSpentMinutes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) AwardStreakBonus(c *gin.Context) {
	days, err := strconv.Atoi(c.Param("days"))
	if err != nil {
		AbortWithError(c, newValidationError("days", "invalid_streak", "invalid value"))
		return
	}

	var req streakBonusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if ok, err := s.ensureLearner(c, req.LearnerID); err != nil || !ok {
		return
	}

	result, err := s.progressionSvc.AwardStreakBonus(c.Request.Context(), req.LearnerID, days)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if result == nil {
		AbortWithError(c, newValidationError("days", "unknown_milestone", "no milestone configured"))
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) RecordActivity(c *gin.Context) {
	var req activityPingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if ok, err := s.ensureLearner(c, req.LearnerID); err != nil || !ok {
		return
	}

	result, err := s.progressionSvc.RecordActivity(c.Request.Context(), progressiondomain.ActivityRequest{
		LearnerID:        req.LearnerID,
		LessonsCompleted: req.LessonsCompleted,
		XPEarned:         req.XPEarned,
		TimeSpentMinutes: req.TimeSpentMinutes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ensureLearner verifies the learner exists before the event reaches the
// façade, caching existence on the ingest hot path.
func (s *Server) ensureLearner(c *gin.Context, learnerID snowflake.ID) (bool, error) {
	if learnerID == 0 {
		AbortWithError(c, progressiondomain.ErrInvalidLearner)
		return false, progressiondomain.ErrInvalidLearner
	}

	if exists, ok := s.resolverCache.Exists(learnerID); ok {
		if !exists {
			AbortWithError(c, ErrNotFound)
			return false, ErrNotFound
		}
		return true, nil
	}

	exists, err := s.userSvc.Exists(c.Request.Context(), learnerID)
	if err != nil {
		AbortWithError(c, err)
		return false, err
	}
	s.resolverCache.SetExists(learnerID, exists)
	if !exists {
		AbortWithError(c, ErrNotFound)
		return false, ErrNotFound
	}
	return true, nil
}
