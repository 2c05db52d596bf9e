package api

import (
	"github.com/gin-gonic/gin"
)

// userStats handles GET /api/v1/users/:user_id/stats.
func (s *Server) userStats(c *gin.Context) {
	stats, err := s.engine.GetUserStats(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		engineError(c, err)
		return
	}
	SuccessResponse(c, "user stats retrieved", stats)
}

// sessionAnalytics handles GET /api/v1/users/:user_id/analytics.
func (s *Server) sessionAnalytics(c *gin.Context) {
	analytics, err := s.engine.GetSessionAnalytics(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		engineError(c, err)
		return
	}
	SuccessResponse(c, "session analytics retrieved", analytics)
}

// exportMemories handles GET /api/v1/users/:user_id/export.
func (s *Server) exportMemories(c *gin.Context) {
	memories, err := s.engine.ExportUserMemories(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		engineError(c, err)
		return
	}
	SuccessResponse(c, "memories exported", memories)
}
