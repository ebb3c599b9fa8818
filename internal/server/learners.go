package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	activitydomain "github.com/skillforge/skillforge/internal/activity/domain"
	userdomain "github.com/skillforge/skillforge/internal/user/domain"
	xpdomain "github.com/skillforge/skillforge/internal/xp/domain"
)

func (s *Server) CreateLearner(c *gin.Context) {
	var req userdomain.CreateLearnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	learner, err := s.userSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, learner)
}

func (s *Server) GetLearner(c *gin.Context) {
	learnerID, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if cached, ok := s.resolverCache.GetSnapshot(learnerID); ok {
		c.JSON(http.StatusOK, cached)
		return
	}

	learner, err := s.userSvc.GetByID(c.Request.Context(), learnerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.resolverCache.SetSnapshot(*learner)

	c.JSON(http.StatusOK, learner)
}

func (s *Server) GetXPInfo(c *gin.Context) {
	learnerID, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	limit, err := parseOptionalInt(c.Query("recent"), 10)
	if err != nil {
		AbortWithError(c, newValidationError("recent", "invalid_recent", "invalid value"))
		return
	}

	info, err := s.xpSvc.GetInfo(c.Request.Context(), learnerID, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, info)
}

func (s *Server) GetXPHistory(c *gin.Context) {
	learnerID, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	req := xpdomain.HistoryRequest{
		LearnerID: learnerID,
		Source:    xpdomain.Source(strings.TrimSpace(c.Query("source"))),
	}
	if err := c.ShouldBindQuery(&req.Pagination); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	history, err := s.xpSvc.History(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, history)
}

func (s *Server) GetStreak(c *gin.Context) {
	learnerID, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status, err := s.progressionSvc.GetStreak(c.Request.Context(), learnerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

func (s *Server) GetDailyActivity(c *gin.Context) {
	learnerID, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	from, err := parseDateParam(c.Query("from"))
	if err != nil {
		AbortWithError(c, newValidationError("from", "invalid_date", "invalid value"))
		return
	}
	to, err := parseDateParam(c.Query("to"))
	if err != nil {
		AbortWithError(c, newValidationError("to", "invalid_date", "invalid value"))
		return
	}

	// Default window: the trailing 30 days.
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}

	rows, err := s.activitySvc.Range(c.Request.Context(), activitydomain.RangeRequest{
		LearnerID: learnerID,
		From:      from,
		To:        to,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"activities": rows})
}

func (s *Server) GetRank(c *gin.Context) {
	learnerID, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	rank, err := s.leaderboardSvc.Rank(c.Request.Context(), learnerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"learner_id": learnerID,
		"rank":       rank,
	})
}
