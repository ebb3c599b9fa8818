package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetLeaderboard(c *gin.Context) {
	limit, err := parseOptionalInt(c.Query("limit"), 10)
	if err != nil {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid value"))
		return
	}

	entries, err := s.leaderboardSvc.Top(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
