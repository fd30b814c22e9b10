package board

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	"taskboard/internal/models"
)

func validationError(format string, args ...any) error {
	return errors.Wrapf(models.ErrValidation, format, args...)
}

// validateTask checks the invariants a stored task must satisfy.
func validateTask(t models.Task) error {
	if strings.TrimSpace(t.BookingID) == "" {
		return validationError("booking id is required")
	}
	if strings.TrimSpace(t.Title) == "" {
		return validationError("title must not be empty")
	}
	if strings.TrimSpace(t.Description) == "" {
		return validationError("description must not be empty")
	}
	if t.DueDate.IsZero() {
		return validationError("due date is required")
	}
	if !t.Status.Valid() {
		return validationError("unknown status '%s'", t.Status)
	}
	if !t.Priority.Valid() {
		return validationError("unknown priority '%s'", t.Priority)
	}
	if t.EstimatedHours != nil && *t.EstimatedHours < 0 {
		return validationError("estimated hours must not be negative")
	}
	return nil
}

// transition moves a task to status. CompletedAt is stamped when entering
// completed, kept while staying there, and cleared when leaving it.
func transition(t *models.Task, status models.TaskStatus, now time.Time) {
	if status == models.StatusCompleted {
		if t.Status != models.StatusCompleted || t.CompletedAt == nil {
			completedAt := now
			t.CompletedAt = &completedAt
		}
	} else {
		t.CompletedAt = nil
	}
	t.Status = status
}

func applyPatch(t *models.Task, patch models.Patch, now time.Time) error {
	if patch.BookingID != nil && *patch.BookingID != t.BookingID {
		return validationError("booking id is immutable")
	}
	if patch.Title != nil {
		t.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		t.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Priority != nil {
		t.Priority = *patch.Priority
	}
	if patch.DueDate != nil {
		t.DueDate = *patch.DueDate
	}
	if patch.Notes != nil {
		t.Notes = *patch.Notes
	}
	if patch.Tags != nil {
		t.Tags = models.NormalizeTags(*patch.Tags)
	}
	if patch.ClearEstimatedHours {
		t.EstimatedHours = nil
	} else if patch.EstimatedHours != nil {
		t.EstimatedHours = models.Float(*patch.EstimatedHours)
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return validationError("unknown status '%s'", *patch.Status)
		}
		transition(t, *patch.Status, now)
	}
	return validateTask(*t)
}
