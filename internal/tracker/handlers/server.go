package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/monorhythm/shukatsu/internal/tracker/auth"
)

// Server wraps the gin engine and the underlying HTTP server so callers get
// explicit start/stop control.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer constructs a Server, registers routes, and guards mutating
// routes with JWT auth. Parse and read routes stay open.
func NewServer(httpPort int, handler *TrackerHandler, jwtSecret string, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api")
	{
		api.POST("/email/parse", handler.ParseEmail)
		api.GET("/companies", handler.ListCompanies)
		api.GET("/companies/:id", handler.GetCompany)

		protected := api.Group("")
		protected.Use(auth.Middleware(jwtSecret))
		{
			protected.POST("/email/apply", handler.ApplyEmail)
			protected.POST("/companies", handler.CreateCompany)
			protected.PATCH("/companies/:id", handler.UpdateCompany)
			protected.DELETE("/companies/:id", handler.DeleteCompany)
			protected.DELETE("/companies", handler.DeleteCompanyByName)
		}
	}

	return &Server{
		engine: engine,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%d", httpPort),
			Handler: engine,
		},
		logger: logger,
	}
}

// Engine exposes the router for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Start runs the HTTP server, returning on the first error.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", zap.String("endpoint", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP serve error: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() {
	s.logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	s.logger.Info("Server stopped")
}
