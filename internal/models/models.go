package models

import (
	"sort"
	"strings"
	"time"

	"github.com/rs/xid"
)

// TaskStatus is the board column a task currently sits in.
type TaskStatus string

const (
	StatusNotStarted TaskStatus = "not_started"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
	StatusBlocked    TaskStatus = "blocked"
)

// Statuses lists the board columns in display order.
var Statuses = []TaskStatus{StatusNotStarted, StatusInProgress, StatusCompleted, StatusBlocked}

// Valid reports whether the status is one of the supported board columns.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted, StatusBlocked:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Priorities lists priorities from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

func (p Priority) Valid() bool {
	return p.Rank() > 0
}

// Rank orders priorities: urgent 4, high 3, medium 2, low 1. Unknown values rank 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Task represents a single unit of work tied to a booking.
type Task struct {
	ID             string     `json:"id"`
	BookingID      string     `json:"booking_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Status         TaskStatus `json:"status"`
	Priority       Priority   `json:"priority"`
	DueDate        time.Time  `json:"due_date"`
	Notes          string     `json:"notes,omitempty"`
	Tags           []string   `json:"tags"`
	EstimatedHours *float64   `json:"estimated_hours,omitempty"`
	ActualHours    float64    `json:"actual_hours"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// NewTaskID returns a fresh opaque task identifier.
func NewTaskID() string {
	return xid.New().String()
}

// Clone returns a deep copy so callers never share tags or pointer fields
// with the stored value.
func (t Task) Clone() Task {
	c := t
	if t.Tags != nil {
		c.Tags = append([]string(nil), t.Tags...)
	}
	if t.EstimatedHours != nil {
		v := *t.EstimatedHours
		c.EstimatedHours = &v
	}
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		c.CompletedAt = &v
	}
	return c
}

// HasTag reports whether the task carries the given tag.
func (t Task) HasTag(tag string) bool {
	for _, v := range t.Tags {
		if v == tag {
			return true
		}
	}
	return false
}

// NormalizeTags trims, drops empty values and de-duplicates tags. The result
// is sorted since tag order carries no meaning.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
