package models

import "time"

// NewTask carries the caller supplied fields of a task to create.
type NewTask struct {
	BookingID      string     `json:"booking_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Status         TaskStatus `json:"status"`
	Priority       Priority   `json:"priority"`
	DueDate        time.Time  `json:"due_date"`
	Notes          string     `json:"notes"`
	Tags           []string   `json:"tags"`
	EstimatedHours *float64   `json:"estimated_hours"`
}

// Patch lists the fields to merge into an existing task. Nil fields are left
// untouched.
type Patch struct {
	BookingID           *string     `json:"booking_id"`
	Title               *string     `json:"title"`
	Description         *string     `json:"description"`
	Status              *TaskStatus `json:"status"`
	Priority            *Priority   `json:"priority"`
	DueDate             *time.Time  `json:"due_date"`
	Notes               *string     `json:"notes"`
	Tags                *[]string   `json:"tags"`
	EstimatedHours      *float64    `json:"estimated_hours"`
	ClearEstimatedHours bool        `json:"clear_estimated_hours"`
}
