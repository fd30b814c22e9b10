package generator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"

	"taskboard/internal/metrics"
	"taskboard/internal/models"
)

const (
	TagPreparation = "preparation"
	TagWork        = "work"
)

// Catalog resolves a category key to a template.
type Catalog interface {
	Lookup(category string) (models.Template, bool)
}

// Sink receives the tasks generated for one booking.
type Sink interface {
	HasBooking(bookingID string) bool
	Append(ctx context.Context, tasks []models.Task) error
}

type Result struct {
	Generated int `json:"generated"`
	// Skipped counts confirmed bookings of the provider that already had tasks.
	Skipped int `json:"skipped"`
	// Ignored counts bookings that are not confirmed or belong to another provider.
	Ignored int `json:"ignored"`
	// Invalid lists the bookings whose tasks were rejected. They are retried
	// on the next run.
	Invalid []Rejection `json:"invalid,omitempty"`
}

type Rejection struct {
	BookingID string `json:"booking_id"`
	Reason    string `json:"reason"`
}

// Engine derives tasks from the confirmed bookings of one provider.
type Engine struct {
	providerID string
	catalog    Catalog
	sink       Sink
	now        func() time.Time
	logger     *slog.Logger
}

func New(providerID string, catalog Catalog, sink Sink, now func() time.Time, logger *slog.Logger) *Engine {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		providerID: providerID,
		catalog:    catalog,
		sink:       sink,
		now:        now,
		logger:     logger,
	}
}

// Generate creates tasks for every confirmed booking of the provider that has
// no task yet. Bookings that already have tasks are skipped for good, so the
// call is safe to repeat on every feed change.
func (e *Engine) Generate(ctx context.Context, bookings []models.Booking) (Result, error) {
	var result Result

	for _, booking := range bookings {
		if err := ctx.Err(); err != nil {
			return result, errors.WithStack(err)
		}

		if !booking.Confirmed() || booking.ProviderID != e.providerID || booking.ID == "" {
			result.Ignored++
			continue
		}

		if e.sink.HasBooking(booking.ID) {
			result.Skipped++
			continue
		}

		tasks, source := e.Derive(booking)
		if err := e.sink.Append(ctx, tasks); err != nil {
			if errors.Is(err, models.ErrConflict) {
				result.Skipped++
				continue
			}
			if errors.Is(err, models.ErrValidation) {
				result.Invalid = append(result.Invalid, Rejection{BookingID: booking.ID, Reason: err.Error()})
				e.logger.WarnContext(ctx, "rejected tasks of booking", slog.String("bookingID", booking.ID), slog.Any("error", err))
				continue
			}
			return result, errors.Wrapf(err, "could not append tasks for booking '%s'", booking.ID)
		}

		metrics.GeneratedTasks.WithLabelValues(source).Add(float64(len(tasks)))
		result.Generated += len(tasks)

		e.logger.InfoContext(ctx, "generated tasks for booking",
			slog.String("bookingID", booking.ID),
			slog.String("source", source),
			slog.Int("tasks", len(tasks)),
		)
	}

	return result, nil
}

// Derive instantiates the tasks of a booking without storing them. It returns
// the tasks and whether they came from a template or the defaults.
func (e *Engine) Derive(booking models.Booking) ([]models.Task, string) {
	now := e.now()

	if tpl, ok := e.catalog.Lookup(booking.Category()); ok && len(tpl.Blueprints) > 0 {
		tasks := make([]models.Task, 0, len(tpl.Blueprints))
		for i, bp := range tpl.Blueprints {
			task := models.Task{
				ID:          models.NewTaskID(),
				BookingID:   booking.ID,
				Title:       bp.Title,
				Description: bp.Description,
				Status:      models.StatusNotStarted,
				Priority:    bp.Priority,
				DueDate:     now.AddDate(0, 0, i+1),
				Tags:        models.NormalizeTags(bp.Tags),
				CreatedAt:   now,
			}
			if bp.EstimatedHours != nil {
				task.EstimatedHours = models.Float(*bp.EstimatedHours)
			}
			tasks = append(tasks, task)
		}
		return tasks, metrics.SourceTemplate
	}

	serviceType := strings.TrimSpace(booking.ServiceType)

	return []models.Task{
		{
			ID:          models.NewTaskID(),
			BookingID:   booking.ID,
			Title:       fmt.Sprintf("Prepare for %s", serviceType),
			Description: fmt.Sprintf("Review the booking details and gather everything needed for %s", serviceType),
			Status:      models.StatusNotStarted,
			Priority:    models.PriorityHigh,
			DueDate:     booking.Date,
			Tags:        []string{TagPreparation},
			CreatedAt:   now,
		},
		{
			ID:          models.NewTaskID(),
			BookingID:   booking.ID,
			Title:       fmt.Sprintf("Complete %s", serviceType),
			Description: fmt.Sprintf("Carry out %s for the customer", serviceType),
			Status:      models.StatusNotStarted,
			Priority:    models.PriorityUrgent,
			DueDate:     booking.Date,
			Tags:        []string{TagWork},
			CreatedAt:   now,
		},
	}, metrics.SourceDefault
}

// Watch runs Generate for every feed snapshot received until ctx is done or
// the feed is closed.
func (e *Engine) Watch(ctx context.Context, feed <-chan []models.Booking) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case bookings, ok := <-feed:
			if !ok {
				return nil
			}
			if _, err := e.Generate(ctx, bookings); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				e.logger.ErrorContext(ctx, "could not generate tasks from booking feed", slog.Any("error", err))
			}
		}
	}
}
