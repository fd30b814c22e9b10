package tracker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"

	"taskboard/internal/metrics"
)

// DefaultFlushInterval is how often elapsed time of the active tracker is
// written back to its task.
const DefaultFlushInterval = time.Minute

// Accumulator adds elapsed hours to the actual hours of a task.
type Accumulator func(taskID string, hours float64) error

// State describes the active tracker.
type State struct {
	TaskID    string    `json:"task_id"`
	StartedAt time.Time `json:"started_at"`
	// Pending is the elapsed time not yet flushed to the task.
	Pending time.Duration `json:"pending"`
}

// Tracker is a single-slot register: at most one task accumulates elapsed
// time at any instant. Every read-compute-write of elapsed time happens under
// mu, so a periodic flush can not race with Start, Stop or StopIf.
type Tracker struct {
	mu        sync.Mutex
	taskID    string
	startedAt time.Time

	accumulate Accumulator
	now        func() time.Time
	interval   time.Duration
	logger     *slog.Logger
}

type Option func(t *Tracker)

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

func WithFlushInterval(interval time.Duration) Option {
	return func(t *Tracker) {
		t.interval = interval
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

func New(accumulate Accumulator, opts ...Option) *Tracker {
	t := &Tracker{
		accumulate: accumulate,
		now:        time.Now,
		interval:   DefaultFlushInterval,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.interval <= 0 {
		t.interval = DefaultFlushInterval
	}
	return t
}

// Start begins tracking id. Any other active tracker is stopped first and
// its elapsed time flushed. Starting the task already tracked is a no-op.
func (t *Tracker) Start(id string) error {
	if id == "" {
		return errors.New("task id must not be empty")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.taskID == id {
		return nil
	}

	if t.taskID != "" {
		if _, err := t.flushLocked(); err != nil {
			t.logger.Warn("could not flush previous tracker", slog.String("taskID", t.taskID), slog.Any("error", err))
		}
	}

	t.taskID = id
	t.startedAt = t.now()

	t.logger.Debug("tracker started", slog.String("taskID", id))

	return nil
}

// Stop flushes the elapsed time of the active tracker and clears it. It
// returns the stopped task id and the flushed hours, or an empty id when
// nothing was tracked.
func (t *Tracker) Stop() (string, float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.stopLocked()
}

// StopIf stops the tracker only when it is tracking id.
func (t *Tracker) StopIf(id string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.taskID == "" || t.taskID != id {
		return false, nil
	}

	_, _, err := t.stopLocked()

	return true, err
}

// Discard clears the tracker without flushing when it is tracking id.
func (t *Tracker) Discard(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.taskID == "" || t.taskID != id {
		return false
	}

	t.logger.Debug("tracker discarded", slog.String("taskID", id), slog.Duration("elapsed", t.now().Sub(t.startedAt)))
	t.clearLocked()

	return true
}

// Flush writes the elapsed time of the active tracker to its task and
// restarts the measurement from now. The tracker stays active.
func (t *Tracker) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.taskID == "" {
		return nil
	}

	_, err := t.flushLocked()

	return err
}

// Active returns the state of the active tracker, if any.
func (t *Tracker) Active() (State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.taskID == "" {
		return State{}, false
	}

	return State{
		TaskID:    t.taskID,
		StartedAt: t.startedAt,
		Pending:   max(t.now().Sub(t.startedAt), 0),
	}, true
}

// Run flushes the active tracker every flush interval until ctx is done.
func (t *Tracker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
				return errors.WithStack(err)
			}
			return nil
		case <-ticker.C:
			if err := t.Flush(); err != nil {
				t.logger.ErrorContext(ctx, "could not flush tracker", slog.Any("error", err))
			}
		}
	}
}

func (t *Tracker) stopLocked() (string, float64, error) {
	if t.taskID == "" {
		return "", 0, nil
	}

	id := t.taskID
	hours, err := t.flushLocked()
	t.clearLocked()

	if err != nil {
		return id, 0, err
	}

	t.logger.Debug("tracker stopped", slog.String("taskID", id), slog.Float64("hours", hours))

	return id, hours, nil
}

func (t *Tracker) flushLocked() (float64, error) {
	now := t.now()
	elapsed := max(now.Sub(t.startedAt), 0)
	hours := elapsed.Hours()

	if err := t.accumulate(t.taskID, hours); err != nil {
		return 0, errors.Wrapf(err, "could not record %f hours on task '%s'", hours, t.taskID)
	}

	t.startedAt = now

	metrics.TrackerFlushes.Inc()
	metrics.TrackedHours.Add(hours)

	return hours, nil
}

func (t *Tracker) clearLocked() {
	t.taskID = ""
	t.startedAt = time.Time{}
}
