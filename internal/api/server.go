package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/trialmatch-engine/internal/domain"
	"github.com/trialmatch-engine/internal/service"
)

// Server is the HTTP boundary of the engine. Patient input shape is
// resolved here, exactly once; everything past the handlers works on the
// canonical profile.
type Server struct {
	logger  *logrus.Logger
	config  *domain.Config
	agent   *service.EligibilityAgent
	agentV2 *service.EligibilityAgentV2
	miner   *service.PatternMiner
	router  *gin.Engine
	server  *http.Server
}

// NewServer creates a new HTTP server instance.
func NewServer(
	logger *logrus.Logger,
	config *domain.Config,
	agent *service.EligibilityAgent,
	agentV2 *service.EligibilityAgentV2,
	miner *service.PatternMiner,
) *Server {
	if config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestIDMiddleware())
	router.Use(loggingMiddleware(logger))

	s := &Server{
		logger:  logger,
		config:  config,
		agent:   agent,
		agentV2: agentV2,
		miner:   miner,
		router:  router,
	}

	s.setupRoutes()
	return s
}

// Start runs the HTTP server until the context is cancelled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.config.Server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes.
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		eligibility := v1.Group("/eligibility")
		{
			eligibility.POST("/evaluate", s.handleEvaluate)
			eligibility.POST("/evaluate/enhanced", s.handleEvaluateEnhanced)
		}
		v1.GET("/patterns/:condition", s.handlePatterns)
	}
}

// evaluateRequest carries one patient/trial pair. The patient arrives as a
// tagged union; exactly one arm must be set.
type evaluateRequest struct {
	Patient domain.PatientInput `json:"patient" binding:"required"`
	Trial   domain.Trial        `json:"trial" binding:"required"`
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
	})
}

// handleEvaluate runs the legacy heuristic decision path.
func (s *Server) handleEvaluate(c *gin.Context) {
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	profile, err := req.Patient.Resolve()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	decision := s.agent.Evaluate(profile, &req.Trial)
	c.JSON(http.StatusOK, decision)
}

// handleEvaluateEnhanced runs the structured catalog-driven decision path.
func (s *Server) handleEvaluateEnhanced(c *gin.Context) {
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	profile, err := req.Patient.Resolve()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	decision := s.agentV2.Evaluate(profile, &req.Trial)
	c.JSON(http.StatusOK, decision)
}

// handlePatterns runs a full mining pass for a condition. Mining is the
// slow path; it gets its own timeout independent of the server write
// timeout.
func (s *Server) handlePatterns(c *gin.Context) {
	condition := c.Param("condition")
	if condition == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "condition is required"})
		return
	}

	timeout := s.config.Server.MiningTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	result, err := s.miner.Mine(ctx, condition)
	if err != nil {
		s.logger.WithError(err).WithField("condition", condition).Error("Pattern mining failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "pattern mining failed"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// corsMiddleware adds CORS headers to responses.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", "Content-Length")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestIDMiddleware adds a unique request ID to each request.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

// loggingMiddleware emits one structured access log line per request.
func loggingMiddleware(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).String(),
		}).Info("Handled request")
	}
}
