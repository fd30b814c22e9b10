package board

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"taskboard/internal/analytics"
	"taskboard/internal/catalog"
	"taskboard/internal/generator"
	"taskboard/internal/metrics"
	"taskboard/internal/models"
	"taskboard/internal/query"
	"taskboard/internal/store/memory"
	"taskboard/internal/tracker"
	"taskboard/internal/workerpool"
)

// Persister is the durable store the board writes behind. Its failures never
// affect the in-memory task set.
type Persister interface {
	SaveTask(ctx context.Context, providerID string, t models.Task) error
	DeleteTask(ctx context.Context, providerID, id string) error
	ListTasks(ctx context.Context, providerID string) ([]models.Task, error)
}

type Options struct {
	ProviderID string
	Catalog    *catalog.Catalog
	// Persister is optional. Without it the board is purely in-memory.
	Persister     Persister
	QueueSize     int
	FlushInterval time.Duration
	CacheSize     int
	CacheTTL      time.Duration
	Now           func() time.Time
	Logger        *slog.Logger
}

// Board is the task board of one provider session. Mutations are serialized
// by mu; the tracker only writes actual hours through the store.
type Board struct {
	mu sync.Mutex

	providerID string
	store      *memory.TaskStore
	tracker    *tracker.Tracker
	generator  *generator.Engine
	catalog    *catalog.Catalog
	cache      *query.Cache
	persister  Persister
	pool       *workerpool.Pool
	now        func() time.Time
	logger     *slog.Logger

	errMu         sync.Mutex
	persistErrors []PersistenceError
}

func New(opts Options) (*Board, error) {
	if strings.TrimSpace(opts.ProviderID) == "" {
		return nil, errors.New("provider id must not be empty")
	}
	if opts.Catalog == nil {
		return nil, errors.New("template catalog is nil")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}

	b := &Board{
		providerID: opts.ProviderID,
		store:      memory.New(),
		catalog:    opts.Catalog,
		cache:      query.NewCache(opts.CacheSize, opts.CacheTTL),
		persister:  opts.Persister,
		now:        opts.Now,
		logger:     opts.Logger.With(slog.String("providerID", opts.ProviderID)),
	}

	b.tracker = tracker.New(b.accumulate,
		tracker.WithClock(opts.Now),
		tracker.WithFlushInterval(opts.FlushInterval),
		tracker.WithLogger(b.logger),
	)
	b.generator = generator.New(opts.ProviderID, opts.Catalog, b, opts.Now, b.logger)

	if b.persister != nil {
		b.pool = workerpool.New(opts.QueueSize, b.onPersistError, b.logger)
	}

	return b, nil
}

// Load replaces the in-memory task set with the one held by the persister.
func (b *Board) Load(ctx context.Context) error {
	if b.persister == nil {
		return nil
	}

	tasks, err := b.persister.ListTasks(ctx, b.providerID)
	if err != nil {
		return errors.Wrap(err, "could not load tasks")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.store.Load(tasks)
	b.refreshGauges()

	b.logger.InfoContext(ctx, "tasks loaded", slog.Int("tasks", len(tasks)))

	return nil
}

// Run drives the periodic tracker flush and the persistence queue until ctx
// is done. On return the active tracker is flushed and queued writes drained.
func (b *Board) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	if b.pool != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.pool.Run(context.WithoutCancel(ctx))
		}()
	}

	err := b.tracker.Run(ctx)

	if err := b.tracker.Flush(); err != nil {
		b.logger.Error("could not flush tracker on shutdown", slog.Any("error", err))
	}

	if b.pool != nil {
		b.pool.Close()
		wg.Wait()
	}

	return err
}

func (b *Board) ProviderID() string {
	return b.providerID
}

// Create validates and stores a new task.
func (b *Board) Create(ctx context.Context, in models.NewTask) (models.Task, error) {
	now := b.now()

	task := models.Task{
		ID:             models.NewTaskID(),
		BookingID:      strings.TrimSpace(in.BookingID),
		Title:          strings.TrimSpace(in.Title),
		Description:    strings.TrimSpace(in.Description),
		Status:         models.StatusNotStarted,
		Priority:       in.Priority,
		DueDate:        in.DueDate,
		Notes:          in.Notes,
		Tags:           models.NormalizeTags(in.Tags),
		EstimatedHours: in.EstimatedHours,
		CreatedAt:      now,
	}
	if task.Priority == "" {
		task.Priority = models.PriorityMedium
	}
	if in.Status != "" {
		if !in.Status.Valid() {
			return models.Task{}, validationError("unknown status '%s'", in.Status)
		}
		transition(&task, in.Status, now)
	}
	if err := validateTask(task); err != nil {
		return models.Task{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.store.Add(task); err != nil {
		return models.Task{}, errors.WithStack(err)
	}
	b.afterSave(ctx, task)

	return task.Clone(), nil
}

// Update merges patch into the task.
func (b *Board) Update(ctx context.Context, id string, patch models.Patch) (models.Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	task, err := b.store.Update(id, func(t *models.Task) error {
		return applyPatch(t, patch, now)
	})
	if err != nil {
		return models.Task{}, err
	}
	b.afterSave(ctx, task)

	return task, nil
}

// Duplicate copies a task under a new id with fresh lifecycle fields.
func (b *Board) Duplicate(ctx context.Context, id string) (models.Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	source, err := b.store.Get(id)
	if err != nil {
		return models.Task{}, err
	}

	task := source.Clone()
	task.ID = models.NewTaskID()
	task.Title = source.Title + " (Copy)"
	task.Status = models.StatusNotStarted
	task.CreatedAt = b.now()
	task.CompletedAt = nil
	task.ActualHours = 0

	if err := b.store.Add(task); err != nil {
		return models.Task{}, errors.WithStack(err)
	}
	b.afterSave(ctx, task)

	return task.Clone(), nil
}

// Delete removes a task. When the task is tracked, the tracker is cleared and
// its unflushed time discarded.
func (b *Board) Delete(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.deleteLocked(ctx, id)
}

func (b *Board) deleteLocked(ctx context.Context, id string) error {
	if _, err := b.store.Get(id); err != nil {
		return err
	}

	if b.tracker.Discard(id) {
		b.logger.InfoContext(ctx, "discarded tracker of deleted task", slog.String("taskID", id))
	}

	if _, err := b.store.Remove(id); err != nil {
		return err
	}
	b.afterDelete(ctx, id)

	return nil
}

// SetStatus moves a task to another column. Every transition is allowed.
func (b *Board) SetStatus(ctx context.Context, id string, status models.TaskStatus) (models.Task, error) {
	if !status.Valid() {
		return models.Task{}, validationError("unknown status '%s'", status)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	task, err := b.store.Update(id, func(t *models.Task) error {
		transition(t, status, now)
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}
	b.afterSave(ctx, task)

	return task, nil
}

// MarkComplete stops the tracker when it tracks the task, flushing its
// elapsed time, then completes the task.
func (b *Board) MarkComplete(ctx context.Context, id string) (models.Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.store.Get(id); err != nil {
		return models.Task{}, err
	}

	if stopped, err := b.tracker.StopIf(id); err != nil {
		b.logger.ErrorContext(ctx, "could not flush tracker before completion", slog.String("taskID", id), slog.Any("error", err))
	} else if stopped {
		b.logger.DebugContext(ctx, "tracker stopped on completion", slog.String("taskID", id))
	}

	now := b.now()
	task, err := b.store.Update(id, func(t *models.Task) error {
		transition(t, models.StatusCompleted, now)
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}
	b.afterSave(ctx, task)

	return task, nil
}

// BulkResult lists the ids a bulk operation applied to and the ids that were
// not found.
type BulkResult struct {
	Affected []string `json:"affected"`
	Missing  []string `json:"missing"`
}

// BulkComplete completes every listed task. It does not touch the tracker.
func (b *Board) BulkComplete(ctx context.Context, ids []string) (BulkResult, error) {
	ids, err := uniqueIDs(ids)
	if err != nil {
		return BulkResult{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	result := BulkResult{Affected: []string{}, Missing: []string{}}
	now := b.now()

	for _, id := range ids {
		task, err := b.store.Update(id, func(t *models.Task) error {
			transition(t, models.StatusCompleted, now)
			return nil
		})
		if errors.Is(err, models.ErrNotFound) {
			result.Missing = append(result.Missing, id)
			continue
		}
		if err != nil {
			return result, err
		}
		b.afterSave(ctx, task)
		result.Affected = append(result.Affected, id)
	}

	return result, nil
}

// BulkDelete removes every listed task.
func (b *Board) BulkDelete(ctx context.Context, ids []string) (BulkResult, error) {
	ids, err := uniqueIDs(ids)
	if err != nil {
		return BulkResult{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	result := BulkResult{Affected: []string{}, Missing: []string{}}

	for _, id := range ids {
		err := b.deleteLocked(ctx, id)
		if errors.Is(err, models.ErrNotFound) {
			result.Missing = append(result.Missing, id)
			continue
		}
		if err != nil {
			return result, err
		}
		result.Affected = append(result.Affected, id)
	}

	return result, nil
}

func uniqueIDs(ids []string) ([]string, error) {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, validationError("at least one task id is required")
	}
	return out, nil
}

func (b *Board) Get(id string) (models.Task, error) {
	return b.store.Get(id)
}

// List returns every task in creation order.
func (b *Board) List() []models.Task {
	return b.store.List()
}

// Query returns the filtered and sorted projection of the task set.
func (b *Board) Query(q query.Query) ([]models.Task, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	return b.cache.Project(b.store, q), nil
}

// Analytics derives statistics over the full task set.
func (b *Board) Analytics() analytics.Snapshot {
	return analytics.Compute(b.store.List(), b.now())
}

func (b *Board) Templates() []models.Template {
	return b.catalog.Templates()
}

// Sync generates tasks for the newly confirmed bookings of the feed snapshot.
func (b *Board) Sync(ctx context.Context, bookings []models.Booking) (generator.Result, error) {
	return b.generator.Generate(ctx, bookings)
}

// HasBooking implements generator.Sink.
func (b *Board) HasBooking(bookingID string) bool {
	return b.store.HasBooking(bookingID)
}

// Append implements generator.Sink. Tasks of a booking are appended at once,
// or not at all when the booking already has tasks.
func (b *Board) Append(ctx context.Context, tasks []models.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	for _, t := range tasks {
		if err := validateTask(t); err != nil {
			return err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	bookingID := tasks[0].BookingID
	if b.store.HasBooking(bookingID) {
		return errors.Wrapf(models.ErrConflict, "booking '%s' already has tasks", bookingID)
	}

	for _, t := range tasks {
		if err := b.store.Add(t); err != nil {
			return errors.WithStack(err)
		}
		b.afterSave(ctx, t)
	}

	return nil
}

// StartTracking makes id the single actively tracked task. The previously
// tracked task, if any, gets its elapsed time flushed.
func (b *Board) StartTracking(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.store.Get(id); err != nil {
		return err
	}
	if err := b.tracker.Start(id); err != nil {
		return validationError("%v", err)
	}

	b.logger.DebugContext(ctx, "tracking task", slog.String("taskID", id))

	return nil
}

type TrackingResult struct {
	TaskID string      `json:"task_id,omitempty"`
	Hours  float64     `json:"hours"`
	Task   models.Task `json:"task"`
}

// StopTracking flushes and clears the active tracker. Stopping an idle
// tracker is a no-op returning an empty result.
func (b *Board) StopTracking(ctx context.Context) (TrackingResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id, hours, err := b.tracker.Stop()
	if err != nil {
		return TrackingResult{}, errors.Wrap(err, "could not flush tracked time")
	}
	if id == "" {
		return TrackingResult{}, nil
	}

	task, err := b.store.Get(id)
	if err != nil {
		return TrackingResult{}, err
	}

	b.logger.DebugContext(ctx, "tracking stopped", slog.String("taskID", id), slog.Float64("hours", hours))

	return TrackingResult{TaskID: id, Hours: hours, Task: task}, nil
}

// Tracking reports the active tracker, if any.
func (b *Board) Tracking() (tracker.State, bool) {
	return b.tracker.Active()
}

// accumulate adds tracked hours to a task. It is called by the tracker with
// its own lock held and must not take b.mu.
func (b *Board) accumulate(id string, hours float64) error {
	if hours < 0 {
		hours = 0
	}
	task, err := b.store.Update(id, func(t *models.Task) error {
		t.ActualHours += hours
		return nil
	})
	if err != nil {
		return err
	}
	b.persist(context.Background(), "save", task.ID, func(ctx context.Context) error {
		return b.persister.SaveTask(ctx, b.providerID, task)
	})
	return nil
}

func (b *Board) afterSave(ctx context.Context, task models.Task) {
	task = task.Clone()
	b.persist(ctx, "save", task.ID, func(ctx context.Context) error {
		return b.persister.SaveTask(ctx, b.providerID, task)
	})
	b.refreshGauges()
}

func (b *Board) afterDelete(ctx context.Context, id string) {
	b.persist(ctx, "delete", id, func(ctx context.Context) error {
		return b.persister.DeleteTask(ctx, b.providerID, id)
	})
	b.refreshGauges()
}

func (b *Board) refreshGauges() {
	counts := make(map[models.TaskStatus]float64, len(models.Statuses))
	for _, t := range b.store.List() {
		counts[t.Status]++
	}
	for _, status := range models.Statuses {
		metrics.Tasks.WithLabelValues(b.providerID, string(status)).Set(counts[status])
	}
}
