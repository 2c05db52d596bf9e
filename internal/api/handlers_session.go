package api

import (
	"github.com/gin-gonic/gin"

	"github.com/memexhq/memex/internal/model"
)

// CreateSessionRequest is the request body for POST /users/:user_id/sessions.
type CreateSessionRequest struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name"`
	Metadata map[string]interface{} `json:"metadata"`
}

// createSession handles POST /api/v1/users/:user_id/sessions.
func (s *Server) createSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequestError(c, "invalid request body: "+err.Error())
		return
	}

	session := &model.Session{
		ID:       req.ID,
		UserID:   c.Param("user_id"),
		Name:     req.Name,
		Metadata: req.Metadata,
	}
	created, err := s.engine.CreateSession(c.Request.Context(), session)
	if err != nil {
		engineError(c, err)
		return
	}
	CreatedResponse(c, "session created", created)
}

// listSessions handles GET /api/v1/users/:user_id/sessions.
func (s *Server) listSessions(c *gin.Context) {
	sessions, err := s.engine.ListSessions(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		engineError(c, err)
		return
	}
	SuccessResponse(c, "sessions listed", sessions)
}

// getSession handles GET /api/v1/users/:user_id/sessions/:session_id.
func (s *Server) getSession(c *gin.Context) {
	session, err := s.engine.GetSession(c.Request.Context(), c.Param("user_id"), c.Param("session_id"))
	if err != nil {
		engineError(c, err)
		return
	}
	SuccessResponse(c, "session retrieved", session)
}

// deleteSession handles DELETE /api/v1/users/:user_id/sessions/:session_id.
func (s *Server) deleteSession(c *gin.Context) {
	cascade := c.Query("cascade") == "true"
	sessionID := c.Param("session_id")
	if err := s.engine.DeleteSession(c.Request.Context(), c.Param("user_id"), sessionID, cascade); err != nil {
		engineError(c, err)
		return
	}
	SuccessResponse(c, "session deleted", gin.H{"id": sessionID})
}

// summarizeSession handles GET /api/v1/users/:user_id/sessions/:session_id/summary.
func (s *Server) summarizeSession(c *gin.Context) {
	summary, err := s.engine.SummarizeSession(c.Request.Context(), c.Param("user_id"), c.Param("session_id"))
	if err != nil {
		engineError(c, err)
		return
	}
	SuccessResponse(c, "session summarized", summary)
}

// searchSessions handles GET /api/v1/users/:user_id/sessions/search.
func (s *Server) searchSessions(c *gin.Context) {
	keywords := splitKeywords(c.Query("q"))
	if len(keywords) == 0 {
		BadRequestError(c, "q is required")
		return
	}
	sessions, err := s.engine.SearchSessions(c.Request.Context(), c.Param("user_id"), keywords)
	if err != nil {
		engineError(c, err)
		return
	}
	SuccessResponse(c, "sessions searched", sessions)
}
