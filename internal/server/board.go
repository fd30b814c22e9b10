package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"taskboard/internal/models"
)

type trackerRequest struct {
	TaskID string `json:"task_id"`
}

type syncRequest struct {
	Bookings []models.Booking `json:"bookings"`
}

// handleTrackerStatus reports the active time tracker, if any.
func (s *Server) handleTrackerStatus(c *gin.Context) {
	state, active := s.board.Tracking()
	if !active {
		respondSuccess(c, http.StatusOK, gin.H{"active": false})
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"active": true, "tracker": state})
}

// handleStartTracker switches the tracker to the given task.
func (s *Server) handleStartTracker(c *gin.Context) {
	var req trackerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	if err := s.board.StartTracking(c.Request.Context(), strings.TrimSpace(req.TaskID)); err != nil {
		s.respondError(c, 0, err)
		return
	}

	state, _ := s.board.Tracking()
	respondSuccess(c, http.StatusOK, gin.H{"active": true, "tracker": state})
}

func (s *Server) handleStopTracker(c *gin.Context) {
	result, err := s.board.StopTracking(c.Request.Context())
	if err != nil {
		s.respondError(c, 0, err)
		return
	}
	if result.TaskID == "" {
		respondSuccess(c, http.StatusOK, gin.H{"active": false})
		return
	}
	respondSuccess(c, http.StatusOK, result)
}

func (s *Server) handleAnalytics(c *gin.Context) {
	respondSuccess(c, http.StatusOK, s.board.Analytics())
}

// handleListTemplates returns the template catalog.
func (s *Server) handleListTemplates(c *gin.Context) {
	respondSuccess(c, http.StatusOK, gin.H{"templates": s.board.Templates()})
}

// handleSyncBookings generates tasks for a booking feed snapshot. Only
// bookings of the board's provider are considered.
func (s *Server) handleSyncBookings(c *gin.Context) {
	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	result, err := s.board.Sync(c.Request.Context(), req.Bookings)
	if err != nil {
		s.respondError(c, 0, err)
		return
	}
	respondSuccess(c, http.StatusOK, result)
}
