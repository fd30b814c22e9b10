package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"taskboard/internal/board"
	"taskboard/internal/models"
)

// Server provides the HTTP handlers of the task board.
type Server struct {
	engine    *gin.Engine
	board     *board.Board
	logger    *slog.Logger
	staticDir string
}

// New constructs the HTTP server with routes and middleware configured.
func New(b *board.Board, logger *slog.Logger, staticDir string) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithWriter(gin.DefaultWriter, "/api/healthz", "/metrics"))

	srv := &Server{
		engine:    router,
		board:     b,
		logger:    logger,
		staticDir: staticDir,
	}

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.engine.Group("/api")
	{
		api.GET("/healthz", s.handleHealth)

		tasks := api.Group("/tasks")
		{
			tasks.GET("", s.handleListTasks)
			tasks.POST("", s.handleCreateTask)
			tasks.POST("/bulk/complete", s.handleBulkComplete)
			tasks.POST("/bulk/delete", s.handleBulkDelete)
			tasks.GET(":id", s.handleGetTask)
			tasks.PATCH(":id", s.handleUpdateTask)
			tasks.DELETE(":id", s.handleDeleteTask)
			tasks.POST(":id/duplicate", s.handleDuplicateTask)
			tasks.POST(":id/complete", s.handleCompleteTask)
			tasks.PUT(":id/status", s.handleSetStatus)
		}

		tracker := api.Group("/tracker")
		{
			tracker.GET("", s.handleTrackerStatus)
			tracker.POST("/start", s.handleStartTracker)
			tracker.POST("/stop", s.handleStopTracker)
		}

		api.GET("/analytics", s.handleAnalytics)
		api.GET("/templates", s.handleListTemplates)
		api.POST("/bookings/sync", s.handleSyncBookings)
	}

	s.mountStatic()
}

// handleHealth provides a basic readiness endpoint.
func (s *Server) handleHealth(c *gin.Context) {
	respondSuccess(c, http.StatusOK, gin.H{
		"status":            "ok",
		"provider":          s.board.ProviderID(),
		"pendingWrites":     s.board.PendingWrites(),
		"persistenceErrors": s.board.PersistenceErrors(),
	})
}

// parseID reads a task identifier path parameter.
func parseID(c *gin.Context, name string) (string, bool) {
	id := strings.TrimSpace(c.Param(name))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identifier"})
		return "", false
	}
	return id, true
}

// confirmed reports whether a destructive call carries confirm=true.
func confirmed(c *gin.Context) bool {
	ok, err := strconv.ParseBool(c.Query("confirm"))
	return err == nil && ok
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrConfirmationRequired):
		return http.StatusPreconditionRequired
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs the error and returns a JSON payload. The status is
// derived from the error when zero.
func (s *Server) respondError(c *gin.Context, status int, err error) {
	if status == 0 {
		status = statusFor(err)
	}
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(c.Request.Context(), "request failed", slog.String("path", c.FullPath()), slog.Any("error", err))
	} else {
		s.logger.DebugContext(c.Request.Context(), "request rejected", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// respondSuccess wraps a payload in a JSON envelope for consistency.
func respondSuccess(c *gin.Context, status int, payload any) {
	if payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}
