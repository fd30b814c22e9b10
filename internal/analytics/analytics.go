package analytics

import (
	"sort"
	"time"

	"taskboard/internal/models"
)

// RecentCompletionsWindow caps the number of recent completions reported.
const RecentCompletionsWindow = 5

type Bucket struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Snapshot is derived from the full task set and never stored on its own.
type Snapshot struct {
	Total                int                          `json:"total"`
	StatusDistribution   map[models.TaskStatus]Bucket `json:"status_distribution"`
	PriorityDistribution map[models.Priority]Bucket   `json:"priority_distribution"`
	CompletionRate       float64                      `json:"completion_rate"`
	Overdue              int                          `json:"overdue"`
	EstimatedHours       float64                      `json:"estimated_hours"`
	ActualHours          float64                      `json:"actual_hours"`
	// Efficiency is estimated over actual hours, nil while no time was recorded.
	Efficiency        *float64      `json:"efficiency"`
	TagUsage          []TagCount    `json:"tag_usage"`
	RecentCompletions []models.Task `json:"recent_completions"`
}

// Compute derives the analytics snapshot of tasks at instant now.
func Compute(tasks []models.Task, now time.Time) Snapshot {
	s := Snapshot{
		Total:                len(tasks),
		StatusDistribution:   make(map[models.TaskStatus]Bucket, len(models.Statuses)),
		PriorityDistribution: make(map[models.Priority]Bucket, len(models.Priorities)),
		TagUsage:             []TagCount{},
		RecentCompletions:    []models.Task{},
	}

	statusCounts := make(map[models.TaskStatus]int, len(models.Statuses))
	priorityCounts := make(map[models.Priority]int, len(models.Priorities))
	tagCounts := map[string]int{}
	today := startOfDay(now)

	for _, t := range tasks {
		statusCounts[t.Status]++
		priorityCounts[t.Priority]++

		if t.DueDate.Before(today) && t.Status != models.StatusCompleted {
			s.Overdue++
		}
		if t.EstimatedHours != nil {
			s.EstimatedHours += *t.EstimatedHours
		}
		s.ActualHours += t.ActualHours

		for _, tag := range t.Tags {
			tagCounts[tag]++
		}

		if t.Status == models.StatusCompleted && t.CompletedAt != nil {
			s.RecentCompletions = append(s.RecentCompletions, t.Clone())
		}
	}

	for _, status := range models.Statuses {
		s.StatusDistribution[status] = bucket(statusCounts[status], s.Total)
	}
	for _, priority := range models.Priorities {
		s.PriorityDistribution[priority] = bucket(priorityCounts[priority], s.Total)
	}

	s.CompletionRate = ratio(statusCounts[models.StatusCompleted], s.Total)

	if s.ActualHours > 0 {
		efficiency := s.EstimatedHours / s.ActualHours
		s.Efficiency = &efficiency
	}

	for tag, count := range tagCounts {
		s.TagUsage = append(s.TagUsage, TagCount{Tag: tag, Count: count})
	}
	sort.Slice(s.TagUsage, func(i, j int) bool {
		if s.TagUsage[i].Count != s.TagUsage[j].Count {
			return s.TagUsage[i].Count > s.TagUsage[j].Count
		}
		return s.TagUsage[i].Tag < s.TagUsage[j].Tag
	})

	sort.SliceStable(s.RecentCompletions, func(i, j int) bool {
		return s.RecentCompletions[i].CompletedAt.After(*s.RecentCompletions[j].CompletedAt)
	})
	if len(s.RecentCompletions) > RecentCompletionsWindow {
		s.RecentCompletions = s.RecentCompletions[:RecentCompletionsWindow]
	}

	return s
}

func bucket(count, total int) Bucket {
	return Bucket{Count: count, Percentage: ratio(count, total) * 100}
}

func ratio(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
