package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"taskboard/internal/models"
	"taskboard/internal/query"
)

type statusRequest struct {
	Status models.TaskStatus `json:"status"`
}

type bulkRequest struct {
	IDs []string `json:"ids"`
}

// handleListTasks returns the filtered and sorted projection of the board.
func (s *Server) handleListTasks(c *gin.Context) {
	var q query.Query
	if err := c.ShouldBindQuery(&q); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	tasks, err := s.board.Query(q)
	if err != nil {
		s.respondError(c, 0, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"tasks": tasks})
}

func (s *Server) handleGetTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	task, err := s.board.Get(id)
	if err != nil {
		s.respondError(c, 0, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

// handleCreateTask creates a task attached to a booking.
func (s *Server) handleCreateTask(c *gin.Context) {
	var req models.NewTask
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	task, err := s.board.Create(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, 0, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"task": task})
}

// handleUpdateTask merges the provided fields into a task.
func (s *Server) handleUpdateTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req models.Patch
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	task, err := s.board.Update(c.Request.Context(), id, req)
	if err != nil {
		s.respondError(c, 0, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

// handleDeleteTask removes a task completely. It requires confirm=true.
func (s *Server) handleDeleteTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if !confirmed(c) {
		s.respondError(c, 0, errors.Wrapf(models.ErrConfirmationRequired, "deleting task '%s'", id))
		return
	}

	if err := s.board.Delete(c.Request.Context(), id); err != nil {
		s.respondError(c, 0, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) handleDuplicateTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	task, err := s.board.Duplicate(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, 0, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"task": task})
}

// handleCompleteTask completes a task, stopping its tracker first.
func (s *Server) handleCompleteTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	task, err := s.board.MarkComplete(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, 0, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

// handleSetStatus moves a task to another column.
func (s *Server) handleSetStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	task, err := s.board.SetStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		s.respondError(c, 0, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

func (s *Server) handleBulkComplete(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	result, err := s.board.BulkComplete(c.Request.Context(), req.IDs)
	if err != nil {
		s.respondError(c, 0, err)
		return
	}
	respondSuccess(c, http.StatusOK, result)
}

// handleBulkDelete removes every listed task. It requires confirm=true.
func (s *Server) handleBulkDelete(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	if !confirmed(c) {
		s.respondError(c, 0, errors.Wrapf(models.ErrConfirmationRequired, "deleting %d tasks", len(req.IDs)))
		return
	}

	result, err := s.board.BulkDelete(c.Request.Context(), req.IDs)
	if err != nil {
		s.respondError(c, 0, err)
		return
	}
	respondSuccess(c, http.StatusOK, result)
}
