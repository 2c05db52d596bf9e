package api

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/memexhq/memex/internal/model"
)

// SaveMemoryRequest is the request body for POST /users/:user_id/memories.
type SaveMemoryRequest struct {
	SessionID  string                 `json:"session_id" binding:"required"`
	Content    string                 `json:"content" binding:"required"`
	Importance float64                `json:"importance"`
	TTLHours   *int                   `json:"ttl_hours"`
	Metadata   map[string]interface{} `json:"metadata"`
	Tags       []string               `json:"tags"`
}

// SaveBatchRequest is the request body for POST /users/:user_id/memories/batch.
type SaveBatchRequest struct {
	Memories    []SaveMemoryRequest `json:"memories" binding:"required"`
	FailOnError bool                `json:"fail_on_error"`
}

// UpdateMemoryRequest is the request body for PATCH /users/:user_id/memories/:id.
type UpdateMemoryRequest struct {
	Content    *string                `json:"content"`
	Importance *float64               `json:"importance"`
	TTLHours   *int                   `json:"ttl_hours"`
	Metadata   map[string]interface{} `json:"metadata"`
	MetadataSet bool                  `json:"metadata_set"`
	Tags       []string               `json:"tags"`
	TagsSet    bool                   `json:"tags_set"`
}

func toModelMemory(userID string, req SaveMemoryRequest) *model.Memory {
	return &model.Memory{
		UserID:     userID,
		SessionID:  req.SessionID,
		Content:    req.Content,
		Importance: req.Importance,
		TTLHours:   req.TTLHours,
		Metadata:   req.Metadata,
		Tags:       req.Tags,
	}
}

// saveMemory handles POST /api/v1/users/:user_id/memories.
func (s *Server) saveMemory(c *gin.Context) {
	userID := c.Param("user_id")

	var req SaveMemoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequestError(c, "invalid request body: "+err.Error())
		return
	}

	m := toModelMemory(userID, req)
	saved, err := s.engine.Save(c.Request.Context(), m)
	if err != nil {
		engineError(c, err)
		return
	}
	CreatedResponse(c, "memory saved", saved)
}

// saveBatch handles POST /api/v1/users/:user_id/memories/batch.
func (s *Server) saveBatch(c *gin.Context) {
	userID := c.Param("user_id")

	var req SaveBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequestError(c, "invalid request body: "+err.Error())
		return
	}

	memories := make([]*model.Memory, len(req.Memories))
	for i, item := range req.Memories {
		memories[i] = toModelMemory(userID, item)
	}

	resp, err := s.engine.SaveBatch(c.Request.Context(), userID, memories, req.FailOnError)
	if err != nil {
		engineError(c, err)
		return
	}
	CreatedResponse(c, "batch processed", resp)
}

// recallMemories handles GET /api/v1/users/:user_id/memories.
func (s *Server) recallMemories(c *gin.Context) {
	filter := &model.QueryFilter{
		UserID:    c.Param("user_id"),
		SessionID: c.Query("session_id"),
		Keywords:  splitKeywords(c.Query("keywords")),
		Limit:     clampLimit(parseIntQuery(c, "limit", 0), model.DefaultLimit, model.MaxLimit),
		Offset:    parseIntQuery(c, "offset", 0),
	}
	if min := c.Query("min_importance"); min != "" {
		if v, err := strconv.ParseFloat(min, 64); err == nil {
			filter.MinImportance = v
		}
	}

	page, err := s.engine.Recall(c.Request.Context(), filter)
	if err != nil {
		engineError(c, err)
		return
	}
	SuccessResponse(c, "memories recalled", page)
}

// searchMemories handles GET /api/v1/users/:user_id/memories/search.
func (s *Server) searchMemories(c *gin.Context) {
	query := c.Query("q")
	filter := &model.QueryFilter{
		UserID:    c.Param("user_id"),
		SessionID: c.Query("session_id"),
		Keywords:  splitKeywords(query),
		Limit:     clampLimit(parseIntQuery(c, "limit", 0), model.DefaultLimit, model.MaxLimit),
		Offset:    parseIntQuery(c, "offset", 0),
	}

	page, err := s.engine.Search(c.Request.Context(), filter)
	if err != nil {
		engineError(c, err)
		return
	}
	SuccessResponse(c, "search complete", page)
}

// getMemory handles GET /api/v1/users/:user_id/memories/:id.
func (s *Server) getMemory(c *gin.Context) {
	m, err := s.engine.GetMemory(c.Request.Context(), c.Param("user_id"), c.Param("id"))
	if err != nil {
		engineError(c, err)
		return
	}
	SuccessResponse(c, "memory retrieved", m)
}

// updateMemory handles PATCH /api/v1/users/:user_id/memories/:id.
func (s *Server) updateMemory(c *gin.Context) {
	var req UpdateMemoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequestError(c, "invalid request body: "+err.Error())
		return
	}

	patch := &model.MemoryPatch{
		Content:     req.Content,
		Importance:  req.Importance,
		TTLHours:    req.TTLHours,
		TTLHoursSet: req.TTLHours != nil,
		Metadata:    req.Metadata,
		MetadataSet: req.MetadataSet,
		Tags:        req.Tags,
		TagsSet:     req.TagsSet,
	}

	m, err := s.engine.UpdateMemory(c.Request.Context(), c.Param("user_id"), c.Param("id"), patch)
	if err != nil {
		engineError(c, err)
		return
	}
	SuccessResponse(c, "memory updated", m)
}

// deleteMemory handles DELETE /api/v1/users/:user_id/memories/:id.
func (s *Server) deleteMemory(c *gin.Context) {
	id := c.Param("id")
	if err := s.engine.DeleteMemory(c.Request.Context(), c.Param("user_id"), id); err != nil {
		engineError(c, err)
		return
	}
	SuccessResponse(c, "memory deleted", gin.H{"id": id})
}

func splitKeywords(q string) []string {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil
	}
	return strings.Fields(q)
}

func parseIntQuery(c *gin.Context, key string, defaultVal int) int {
	v := c.Query(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}
