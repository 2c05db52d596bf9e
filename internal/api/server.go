package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/memexhq/memex/internal/engine"
	"github.com/memexhq/memex/internal/logging"
	"github.com/memexhq/memex/pkg/config"
)

// Server is the REST façade over an *engine.Engine.
type Server struct {
	router     *gin.Engine
	engine     *engine.Engine
	config     *config.Config
	httpServer *http.Server
	log        *logging.Logger
}

// NewServer builds the router and wires every route to e.
func NewServer(e *engine.Engine, cfg *config.Config) *Server {
	log := logging.GetLogger("api")
	log.Info("initializing REST API server")

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	if cfg.RestAPI.CORS {
		log.Debug("enabling CORS")
		router.Use(cors.New(cors.Config{
			AllowAllOrigins: true,
			AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
			AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key"},
			ExposeHeaders:   []string{"Content-Length", "Retry-After"},
			MaxAge:          12 * time.Hour,
		}))
	}

	defaultLimit := MaxBodySizeMiddleware(DefaultBodyLimit)
	router.Use(func(c *gin.Context) {
		// The batch route applies its own, larger BatchBodyLimit.
		if c.FullPath() == "/api/v1/users/:user_id/memories/batch" {
			c.Next()
			return
		}
		defaultLimit(c)
	})

	s := &Server{router: router, engine: e, config: cfg, log: log}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api/v1")
	{
		api.GET("/health", s.health)

		users := api.Group("/users/:user_id")
		{
			users.POST("/memories", s.saveMemory)
			users.POST("/memories/batch", MaxBodySizeMiddleware(BatchBodyLimit), s.saveBatch)
			users.GET("/memories", s.recallMemories)
			users.GET("/memories/search", s.searchMemories)
			users.GET("/memories/:id", s.getMemory)
			users.PATCH("/memories/:id", s.updateMemory)
			users.DELETE("/memories/:id", s.deleteMemory)

			users.POST("/sessions", s.createSession)
			users.GET("/sessions", s.listSessions)
			users.GET("/sessions/search", s.searchSessions)
			users.GET("/sessions/:session_id", s.getSession)
			users.DELETE("/sessions/:session_id", s.deleteSession)
			users.GET("/sessions/:session_id/summary", s.summarizeSession)

			users.GET("/stats", s.userStats)
			users.GET("/analytics", s.sessionAnalytics)
			users.GET("/export", s.exportMemories)
		}

		api.POST("/decay/run", s.runDecay)
		api.GET("/decay/analyze", s.analyzeDecay)
		api.PUT("/decay/policy", s.updateDecayPolicy)

		api.GET("/stats", s.stats)
	}
}

func (s *Server) health(c *gin.Context) {
	SuccessResponse(c, "ok", gin.H{"status": "healthy"})
}

// Start runs the HTTP server until ctx is cancelled, then shuts down
// gracefully within shutdownTimeout.
func (s *Server) Start(ctx context.Context, shutdownTimeout time.Duration) error {
	addr := fmt.Sprintf("%s:%d", s.config.RestAPI.Host, s.config.RestAPI.Port)
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("starting REST API server", "address", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("stopping REST API server")
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.log.Error("server shutdown error", "error", err)
		return err
	}
	s.log.Info("REST API server stopped")
	return nil
}

// Router exposes the underlying Gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
