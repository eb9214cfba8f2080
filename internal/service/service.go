// Package service exposes the HTTP API: JSON endpoints for auth,
// alliances, and tasks, plus SSE streams backed by the live views.
package service

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/hmallik/taskally/internal/auth"
	"github.com/hmallik/taskally/internal/middleware"
	"github.com/hmallik/taskally/internal/models"
	"github.com/hmallik/taskally/internal/monitoring"
	"github.com/hmallik/taskally/internal/storage"
	"github.com/hmallik/taskally/internal/tasks"
)

// Service holds the dependencies shared by all HTTP handlers.
type Service struct {
	store    storage.Store
	provider *auth.PasswordProvider
	jwt      *auth.JWTManager
	gateway  *tasks.Gateway
	logger   *slog.Logger
}

// New creates the HTTP service.
func New(store storage.Store, provider *auth.PasswordProvider, jwt *auth.JWTManager, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		provider: provider,
		jwt:      jwt,
		gateway:  tasks.NewGateway(store, logger),
		logger:   logger,
	}
}

// Router builds the gin engine with all routes and middleware attached.
func (s *Service) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.CORS(),
		middleware.RequestLogger(),
		monitoring.Middleware(),
	)

	r.GET("/metrics", monitoring.Handler())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.Use(middleware.RateLimiter(rate.Limit(20), 40))

	authGroup := api.Group("/auth")
	authGroup.POST("/register", s.handleRegister)
	authGroup.POST("/login", s.handleLogin)
	authGroup.POST("/logout", middleware.RequireAuth(s.jwt), s.handleLogout)
	authGroup.GET("/me", middleware.RequireAuth(s.jwt), s.handleMe)

	protected := api.Group("", middleware.RequireAuth(s.jwt))

	protected.POST("/alliances", s.handleCreateAlliance)
	protected.GET("/alliances/:id", s.handleGetAlliance)
	protected.POST("/alliances/:id/join", s.handleJoinAlliance)
	protected.POST("/alliances/:id/leave", s.handleLeaveAlliance)
	protected.GET("/alliances/:id/stream", s.handleAllianceStream)

	protected.POST("/tasks", s.handleCreateTask)
	protected.GET("/tasks/stream", s.handleTaskStream)
	protected.GET("/tasks/:id", s.handleGetTask)
	protected.PATCH("/tasks/:id", s.handleUpdateTask)
	protected.DELETE("/tasks/:id", s.handleDeleteTask)
	protected.POST("/tasks/:id/complete", s.handleCompleteTask)
	protected.PATCH("/tasks/:id/subtasks/:index", s.handleUpdateSubTask)

	return r
}

// writeError maps domain errors onto HTTP statuses. Unknown errors are
// reported as 500 without leaking detail.
func (s *Service) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, tasks.ErrNoSubTasks):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, tasks.ErrSubTaskIndex):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrInvalidField):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, auth.ErrEmailExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, auth.ErrWeakPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, storage.ErrBatchTooLarge):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
