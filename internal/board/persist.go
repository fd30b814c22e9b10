package board

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"

	"taskboard/internal/metrics"
	"taskboard/internal/models"
	"taskboard/internal/workerpool"
)

const maxPersistErrors = 50

// PersistenceError records a write the durable store did not accept. The
// in-memory task set is left as is; reconciling is up to the integrator.
type PersistenceError struct {
	Operation string    `json:"operation"`
	TaskID    string    `json:"task_id"`
	Error     string    `json:"error"`
	At        time.Time `json:"at"`
}

// persist queues a write to the durable store. It never blocks: a full or
// closed queue is reported as a persistence error.
func (b *Board) persist(ctx context.Context, operation, taskID string, write func(ctx context.Context) error) {
	if b.pool == nil {
		return
	}

	job := workerpool.Job{
		Name: operation + ":" + taskID,
		Run:  write,
	}

	if err := b.pool.Enqueue(job); err != nil {
		b.recordPersistError(ctx, operation, taskID, err)
	}
}

func (b *Board) onPersistError(job workerpool.Job, err error) {
	operation, taskID, _ := strings.Cut(job.Name, ":")
	b.recordPersistError(context.Background(), operation, taskID, err)
}

func (b *Board) recordPersistError(ctx context.Context, operation, taskID string, err error) {
	err = errors.Wrapf(models.ErrPersistence, "%s task '%s': %v", operation, taskID, err)

	metrics.PersistenceFailures.WithLabelValues(operation).Inc()
	b.logger.ErrorContext(ctx, "could not persist task", slog.String("operation", operation), slog.String("taskID", taskID), slog.Any("error", err))

	b.errMu.Lock()
	defer b.errMu.Unlock()

	b.persistErrors = append(b.persistErrors, PersistenceError{
		Operation: operation,
		TaskID:    taskID,
		Error:     err.Error(),
		At:        b.now(),
	})
	if len(b.persistErrors) > maxPersistErrors {
		b.persistErrors = b.persistErrors[len(b.persistErrors)-maxPersistErrors:]
	}
}

// PersistenceErrors returns the most recent persistence failures, oldest
// first.
func (b *Board) PersistenceErrors() []PersistenceError {
	b.errMu.Lock()
	defer b.errMu.Unlock()

	return append([]PersistenceError(nil), b.persistErrors...)
}

// PendingWrites is the number of writes queued for the durable store.
func (b *Board) PendingWrites() int {
	if b.pool == nil {
		return 0
	}
	return b.pool.Pending()
}
