package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hmallik/taskally/internal/live"
	"github.com/hmallik/taskally/internal/middleware"
	"github.com/hmallik/taskally/internal/models"
	"github.com/hmallik/taskally/internal/monitoring"
	"github.com/hmallik/taskally/internal/tasks"
)

type createTaskRequest struct {
	tasks.CreateTaskInput

	// AllianceID scopes the task to an alliance. Empty creates a personal
	// task assigned to the caller.
	AllianceID string `json:"allianceId"`
}

type taskPatchRequest struct {
	Name            *string                     `json:"name"`
	Description     *string                     `json:"description"`
	Priority        *models.Priority            `json:"priority"`
	Recurrence      *models.Recurrence          `json:"recurrence"`
	DueDate         *time.Time                  `json:"dueDate"`
	ClearDueDate    bool                        `json:"clearDueDate"`
	CompletedAt     *time.Time                  `json:"completedAt"`
	ClearCompleted  bool                        `json:"clearCompleted"`
	Category        *string                     `json:"category"`
	ClearCategory   bool                        `json:"clearCategory"`
	AssignedUserIDs *[]string                   `json:"assignedUserIds"`
	SubTasks        map[string][]models.SubTask `json:"subTask"`
}

func (r *taskPatchRequest) toPatch() *models.TaskPatch {
	return &models.TaskPatch{
		Name:            r.Name,
		Description:     r.Description,
		Priority:        r.Priority,
		Recurrence:      r.Recurrence,
		DueDate:         r.DueDate,
		ClearDueDate:    r.ClearDueDate,
		CompletedAt:     r.CompletedAt,
		ClearCompleted:  r.ClearCompleted,
		Category:        r.Category,
		ClearCategory:   r.ClearCategory,
		AssignedUserIDs: r.AssignedUserIDs,
		SubTasks:        r.SubTasks,
	}
}

func (s *Service) handleCreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var task *models.Task
	var err error
	if req.AllianceID != "" {
		task, err = s.gateway.CreateAllianceTask(c.Request.Context(), req.AllianceID, req.CreateTaskInput)
	} else {
		task, err = s.gateway.CreateUserTask(c.Request.Context(), middleware.GetUserID(c), req.CreateTaskInput)
	}
	if err != nil {
		s.writeError(c, err)
		return
	}

	monitoring.TaskMutations.WithLabelValues("create").Inc()
	c.JSON(http.StatusCreated, task)
}

func (s *Service) handleGetTask(c *gin.Context) {
	task, err := s.gateway.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Service) handleUpdateTask(c *gin.Context) {
	var req taskPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	patch := req.toPatch()
	if patch.Empty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty patch"})
		return
	}

	if err := s.gateway.UpdateTask(c.Request.Context(), c.Param("id"), patch); err != nil {
		s.writeError(c, err)
		return
	}

	monitoring.TaskMutations.WithLabelValues("update").Inc()
	task, err := s.gateway.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Service) handleDeleteTask(c *gin.Context) {
	if err := s.gateway.RemoveTask(c.Request.Context(), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	monitoring.TaskMutations.WithLabelValues("delete").Inc()
	c.Status(http.StatusNoContent)
}

// handleCompleteTask marks the task done, or rolls a recurring task
// forward to its next due date.
func (s *Service) handleCompleteTask(c *gin.Context) {
	task, err := s.gateway.CompleteTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	monitoring.TaskMutations.WithLabelValues("complete").Inc()
	c.JSON(http.StatusOK, task)
}

func (s *Service) handleUpdateSubTask(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subtask index"})
		return
	}

	var patch tasks.SubTaskPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.gateway.UpdateSubTask(c.Request.Context(), c.Param("id"), index, patch); err != nil {
		s.writeError(c, err)
		return
	}

	monitoring.TaskMutations.WithLabelValues("subtask").Inc()
	task, err := s.gateway.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// handleTaskStream serves the caller's assigned-task list as an SSE
// stream.
func (s *Service) handleTaskStream(c *gin.Context) {
	view := live.NewUserTaskView(s.store)
	defer view.Close()

	view.SetUser(middleware.GetUserID(c))
	streamSSE(c, view.Updates())
}
