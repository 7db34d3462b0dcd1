package flowcontrol

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/sri0013/vnf-project/pkg/apierrors"
	"github.com/sri0013/vnf-project/pkg/vnf"
)

// Server exposes the Flow API of spec §6 over gin, with the teacher's middleware chain:
// panic recovery, a token-bucket rate limiter, structured request logging.
type Server struct {
	engine     *gin.Engine
	controller *Controller
	instances  func(vnf.VNFType) []*vnf.Instance
	httpServer *http.Server
}

// NewServer builds the gin.Engine and registers every Flow API route.
func NewServer(controller *Controller, instances func(vnf.VNFType) []*vnf.Instance) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(recoveryMiddleware(), rateLimitMiddleware(rate.NewLimiter(rate.Limit(100), 200)), loggingMiddleware())

	s := &Server{engine: engine, controller: controller, instances: instances}
	s.registerRoutes()
	return s
}

func recoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered interface{}) {
		logrus.WithField("component", "flow_api").Errorf("panic recovered: %v", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	})
}

func rateLimitMiddleware(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logrus.WithFields(logrus.Fields{
			"component": "flow_api",
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"duration":  time.Since(start).String(),
		}).Info("flow api request")
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/ready", s.handleHealth)
	s.engine.GET("/flows", s.handleListFlows)
	s.engine.POST("/flows", s.handleCreateFlow)
	s.engine.DELETE("/flows/:flow_id", s.handleDeleteFlow)
	s.engine.GET("/vnf/:type/instances", s.handleListInstances)
	s.engine.GET("/load-balance/:type", s.handleLoadBalance)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now()})
}

func (s *Server) handleListFlows(c *gin.Context) {
	c.JSON(http.StatusOK, s.controller.ListAllRules())
}

type createFlowRequest struct {
	VNFType    string `json:"vnf_type" binding:"required"`
	InstanceID string `json:"instance_id" binding:"required"`
	Priority   int    `json:"priority"`
}

func (s *Server) handleCreateFlow(c *gin.Context) {
	var req createFlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rule, err := s.controller.AddRule(vnf.VNFType(req.VNFType), req.InstanceID, req.Priority)
	if err != nil {
		if apierrors.Is(err, apierrors.CodeInvalidAction) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, rule)
}

func (s *Server) handleDeleteFlow(c *gin.Context) {
	flowID := c.Param("flow_id")
	if err := s.controller.RemoveRule(flowID); err != nil {
		if apierrors.Is(err, apierrors.CodeCapacity) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleListInstances(c *gin.Context) {
	t := vnf.VNFType(c.Param("type"))
	c.JSON(http.StatusOK, s.instances(t))
}

func (s *Server) handleLoadBalance(c *gin.Context) {
	t := vnf.VNFType(c.Param("type"))
	inst, err := s.controller.NextInstance(t)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, inst)
}

// Start serves the Flow API on addr in the background.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return nil
}

// Shutdown gracefully stops the Flow API listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
