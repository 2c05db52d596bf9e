package api

import (
	"github.com/gin-gonic/gin"

	"github.com/memexhq/memex/internal/model"
)

// UpdateDecayPolicyRequest is the request body for PUT /decay/policy.
type UpdateDecayPolicyRequest struct {
	DefaultMemoryTTLHours int     `json:"default_memory_ttl_hours"`
	ImportanceThreshold   float64 `json:"importance_threshold"`
	MaxMemoriesPerUser    int     `json:"max_memories_per_user"`
	EnableCompression     bool    `json:"enable_compression"`
	AutoEvictOnQuota      bool    `json:"auto_evict_on_quota"`
}

// runDecay handles POST /api/v1/decay/run.
func (s *Server) runDecay(c *gin.Context) {
	stats, err := s.engine.Decay(c.Request.Context())
	if err != nil {
		engineError(c, err)
		return
	}
	SuccessResponse(c, "decay pass complete", stats)
}

// analyzeDecay handles GET /api/v1/decay/analyze.
func (s *Server) analyzeDecay(c *gin.Context) {
	plan, err := s.engine.AnalyzeDecay(c.Request.Context())
	if err != nil {
		engineError(c, err)
		return
	}
	SuccessResponse(c, "decay plan computed", plan)
}

// updateDecayPolicy handles PUT /api/v1/decay/policy.
func (s *Server) updateDecayPolicy(c *gin.Context) {
	var req UpdateDecayPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequestError(c, "invalid request body: "+err.Error())
		return
	}
	s.engine.UpdateDecayPolicy(model.DecayPolicy{
		DefaultMemoryTTLHours: req.DefaultMemoryTTLHours,
		ImportanceThreshold:   req.ImportanceThreshold,
		MaxMemoriesPerUser:    req.MaxMemoriesPerUser,
		EnableCompression:     req.EnableCompression,
		AutoEvictOnQuota:      req.AutoEvictOnQuota,
	})
	SuccessResponse(c, "decay policy updated", nil)
}

// stats handles GET /api/v1/stats.
func (s *Server) stats(c *gin.Context) {
	st, err := s.engine.GetStats()
	if err != nil {
		engineError(c, err)
		return
	}
	SuccessResponse(c, "stats retrieved", st)
}
