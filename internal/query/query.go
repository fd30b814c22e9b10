package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"taskboard/internal/models"
)

// All disables a filter.
const All = "all"

type SortKey string

const (
	SortByDueDate   SortKey = "due_date"
	SortByPriority  SortKey = "priority"
	SortByCreatedAt SortKey = "created_at"
	SortByTitle     SortKey = "title"
)

type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

// Query describes a board projection. Empty filter values behave like All.
type Query struct {
	Search   string    `json:"search" form:"search"`
	Status   string    `json:"status" form:"status"`
	Priority string    `json:"priority" form:"priority"`
	Tag      string    `json:"tag" form:"tag"`
	SortBy   SortKey   `json:"sort" form:"sort"`
	Order    SortOrder `json:"order" form:"order"`
}

// Normalize fills defaults and validates the sort key, order and filters.
func (q Query) Normalize() (Query, error) {
	q.Search = strings.TrimSpace(q.Search)
	q.Status = filterValue(q.Status)
	q.Priority = filterValue(q.Priority)
	q.Tag = strings.TrimSpace(q.Tag)
	if q.Tag == "" || strings.EqualFold(q.Tag, All) {
		q.Tag = All
	}

	if q.Status != All && !models.TaskStatus(q.Status).Valid() {
		return q, errors.Wrapf(models.ErrValidation, "unknown status filter '%s'", q.Status)
	}
	if q.Priority != All && !models.Priority(q.Priority).Valid() {
		return q, errors.Wrapf(models.ErrValidation, "unknown priority filter '%s'", q.Priority)
	}

	switch q.SortBy {
	case "":
		q.SortBy = SortByDueDate
	case SortByDueDate, SortByPriority, SortByCreatedAt, SortByTitle:
	default:
		return q, errors.Wrapf(models.ErrValidation, "unknown sort key '%s'", q.SortBy)
	}

	switch q.Order {
	case "":
		q.Order = Ascending
	case Ascending, Descending:
	default:
		return q, errors.Wrapf(models.ErrValidation, "unknown sort order '%s'", q.Order)
	}

	return q, nil
}

// Key identifies a normalized query.
func (q Query) Key() string {
	return fmt.Sprintf("%q|%s|%s|%q|%s|%s", strings.ToLower(q.Search), q.Status, q.Priority, q.Tag, q.SortBy, q.Order)
}

// Apply filters and sorts tasks. The input slice is left untouched and the
// sort is stable, so tasks comparing equal keep their input order.
func Apply(tasks []models.Task, q Query) []models.Task {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	status := filterValue(q.Status)
	priority := filterValue(q.Priority)
	tag := strings.TrimSpace(q.Tag)

	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if !matchesSearch(t, search) {
			continue
		}
		if status != All && string(t.Status) != status {
			continue
		}
		if priority != All && string(t.Priority) != priority {
			continue
		}
		if tag != "" && !strings.EqualFold(tag, All) && !t.HasTag(tag) {
			continue
		}
		out = append(out, t)
	}

	less := comparator(q.SortBy)
	if q.Order == Descending {
		sort.SliceStable(out, func(i, j int) bool { return less(out[j], out[i]) })
	} else {
		sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	}

	return out
}

func matchesSearch(t models.Task, search string) bool {
	if search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(t.Title), search) ||
		strings.Contains(strings.ToLower(t.Description), search) ||
		strings.Contains(strings.ToLower(t.Notes), search)
}

func comparator(key SortKey) func(a, b models.Task) bool {
	switch key {
	case SortByPriority:
		return func(a, b models.Task) bool { return a.Priority.Rank() < b.Priority.Rank() }
	case SortByCreatedAt:
		return func(a, b models.Task) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case SortByTitle:
		return func(a, b models.Task) bool { return a.Title < b.Title }
	default:
		return func(a, b models.Task) bool { return a.DueDate.Before(b.DueDate) }
	}
}

func filterValue(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return All
	}
	return v
}
