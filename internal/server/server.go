package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"

	tactical "github.com/kimalale/tactical-workflow-manager"
	"github.com/kimalale/tactical-workflow-manager/internal/dbproxy"
	"github.com/kimalale/tactical-workflow-manager/internal/engine"
	"github.com/kimalale/tactical-workflow-manager/internal/events"
	"github.com/kimalale/tactical-workflow-manager/internal/trigger"
	"github.com/kimalale/tactical-workflow-manager/internal/vars"
	"github.com/kimalale/tactical-workflow-manager/pkg/api"
	"github.com/kimalale/tactical-workflow-manager/pkg/util"
)

type (
	// Server implements the HTTP API server for the workflow engine
	Server struct {
		engine    *engine.Engine
		hub       *events.Hub
		webhooks  *trigger.Webhooks
		schedules *trigger.Schedules
		vars      vars.Store
		registry  *dbproxy.Registry
		sockets   util.Set[*Client]
		mu        sync.Mutex
	}

	// Services are the components the HTTP API exposes
	Services struct {
		Engine    *engine.Engine
		Hub       *events.Hub
		Webhooks  *trigger.Webhooks
		Schedules *trigger.Schedules
		Vars      vars.Store
		Registry  *dbproxy.Registry
	}
)

var ErrInvalidJSON = errors.New("invalid JSON")

// NewServer creates a new HTTP API server
func NewServer(svc Services) *Server {
	return &Server{
		engine:    svc.Engine,
		hub:       svc.Hub,
		webhooks:  svc.Webhooks,
		schedules: svc.Schedules,
		vars:      svc.Vars,
		registry:  svc.Registry,
		sockets:   util.Set[*Client]{},
	}
}

// SetupRoutes configures and returns the HTTP router with all API endpoints
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(c *gin.Context, l *slog.Logger) *slog.Logger {
			return slog.Default()
		}),
	))

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set(
			"Access-Control-Allow-Methods",
			"GET, POST, PUT, DELETE, OPTIONS",
		)
		c.Writer.Header().Set(
			"Access-Control-Allow-Headers",
			"Content-Type, Authorization",
		)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	router.GET("/health", s.handleHealth)

	// Webhook trigger endpoint
	router.POST("/webhook/:id", s.triggerWebhook)

	eng := router.Group("/engine")
	{
		// Workflow and runs
		eng.GET("/workflow", s.getWorkflow)
		eng.PUT("/workflow", s.putWorkflow)
		eng.GET("/run", s.listRuns)
		eng.POST("/run", s.startRun)
		eng.GET("/run/:runID", s.getRun)
		eng.POST("/run/:runID/cancel", s.cancelRun)
		eng.GET("/board", s.getBoard)
		eng.GET("/history", s.listHistory)
		eng.GET("/logs", s.listLogs)
		eng.DELETE("/logs", s.clearLogs)

		// Webhooks
		eng.GET("/webhook", s.listWebhooks)
		eng.POST("/webhook", s.createWebhook)
		eng.GET("/webhook/events", s.listWebhookEvents)
		eng.DELETE("/webhook/:id", s.deleteWebhook)
		eng.POST("/webhook/:id/toggle", s.toggleWebhook)

		// Schedules
		eng.GET("/schedule", s.listSchedules)
		eng.POST("/schedule", s.createSchedule)
		eng.POST("/schedule/start", s.startSchedules)
		eng.POST("/schedule/stop", s.stopSchedules)
		eng.DELETE("/schedule/:id", s.deleteSchedule)

		// Variables
		eng.GET("/vars", s.listVars)
		eng.DELETE("/vars", s.clearVars)
		eng.GET("/vars/:key", s.getVar)
		eng.PUT("/vars/:key", s.setVar)
		eng.DELETE("/vars/:key", s.deleteVar)

		// Database connections
		eng.GET("/database", s.listConnections)
		eng.POST("/database", s.createConnection)
		eng.DELETE("/database/:name", s.deleteConnection)
		eng.POST("/database/:name/test", s.testConnection)

		// WebSocket
		eng.GET("/ws", s.handleWebSocket)
	}

	return router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{
		Service: tactical.Name,
		Version: tactical.Version,
		Status:  "healthy",
	})
}

func (s *Server) registerWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets.Add(c)
}

func (s *Server) unregisterWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets.Remove(c)
}

// CloseWebSockets closes all active WebSocket connections
func (s *Server) CloseWebSockets() {
	s.mu.Lock()
	conns := s.sockets.Values()
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

func respondError(c *gin.Context, status int, err error) {
	c.JSON(status, api.ErrorResponse{
		Error:  err.Error(),
		Status: status,
	})
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest,
			fmt.Errorf("%w: %w", ErrInvalidJSON, err))
		return false
	}
	return true
}
