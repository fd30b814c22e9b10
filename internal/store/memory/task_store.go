package memory

import (
	"sync"

	"github.com/pkg/errors"

	"taskboard/internal/models"
)

// TaskStore holds the authoritative task set of one provider session.
type TaskStore struct {
	mu       sync.RWMutex
	tasks    map[string]models.Task
	order    []string
	revision uint64
}

func New() *TaskStore {
	return &TaskStore{
		tasks: make(map[string]models.Task),
	}
}

// Add inserts a new task. The id must not already be present.
func (ts *TaskStore) Add(task models.Task) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if _, exists := ts.tasks[task.ID]; exists {
		return errors.Wrapf(models.ErrConflict, "task '%s' already exists", task.ID)
	}

	ts.tasks[task.ID] = task.Clone()
	ts.order = append(ts.order, task.ID)
	ts.revision++

	return nil
}

// Load replaces the whole task set, preserving the given order.
func (ts *TaskStore) Load(tasks []models.Task) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	ts.tasks = make(map[string]models.Task, len(tasks))
	ts.order = make([]string, 0, len(tasks))
	for _, t := range tasks {
		if _, exists := ts.tasks[t.ID]; exists {
			continue
		}
		ts.tasks[t.ID] = t.Clone()
		ts.order = append(ts.order, t.ID)
	}
	ts.revision++
}

// Remove deletes a task and returns its last state.
func (ts *TaskStore) Remove(id string) (models.Task, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	task, ok := ts.tasks[id]
	if !ok {
		return models.Task{}, errors.Wrapf(models.ErrNotFound, "task '%s'", id)
	}

	delete(ts.tasks, id)
	for i, v := range ts.order {
		if v == id {
			ts.order = append(ts.order[:i], ts.order[i+1:]...)
			break
		}
	}
	ts.revision++

	return task, nil
}

// Update applies fn to a copy of the task and stores the result if fn
// succeeds. The id of the task can not be changed by fn.
func (ts *TaskStore) Update(id string, fn func(t *models.Task) error) (models.Task, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	current, ok := ts.tasks[id]
	if !ok {
		return models.Task{}, errors.Wrapf(models.ErrNotFound, "task '%s'", id)
	}

	updated := current.Clone()
	if err := fn(&updated); err != nil {
		return models.Task{}, err
	}
	updated.ID = id

	ts.tasks[id] = updated
	ts.revision++

	return updated.Clone(), nil
}

func (ts *TaskStore) Get(id string) (models.Task, error) {
	ts.mu.RLock()
	task, ok := ts.tasks[id]
	ts.mu.RUnlock()

	if !ok {
		return models.Task{}, errors.Wrapf(models.ErrNotFound, "task '%s'", id)
	}

	return task.Clone(), nil
}

// List returns every task in insertion order.
func (ts *TaskStore) List() []models.Task {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	tasks := make([]models.Task, 0, len(ts.order))
	for _, id := range ts.order {
		tasks = append(tasks, ts.tasks[id].Clone())
	}

	return tasks
}

// Snapshot returns the task list together with the revision it was read at.
func (ts *TaskStore) Snapshot() ([]models.Task, uint64) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	tasks := make([]models.Task, 0, len(ts.order))
	for _, id := range ts.order {
		tasks = append(tasks, ts.tasks[id].Clone())
	}

	return tasks, ts.revision
}

// HasBooking reports whether at least one task references the booking.
func (ts *TaskStore) HasBooking(bookingID string) bool {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	for _, t := range ts.tasks {
		if t.BookingID == bookingID {
			return true
		}
	}
	return false
}

func (ts *TaskStore) Len() int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return len(ts.tasks)
}

// Revision changes every time the task set is written.
func (ts *TaskStore) Revision() uint64 {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.revision
}
