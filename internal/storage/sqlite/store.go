package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"taskboard/internal/models"
)

// Store persists the task set of every provider in a SQLite database. It is
// the durable mirror of the in-memory board, written behind it.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open initializes a new SQLite store and runs the required migrations.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("empty database path")
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if err := ensureDir(dbPath); err != nil {
		return nil, errors.WithStack(err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=ON", dbPath))
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}

	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	s := &Store{db: conn, logger: logger}
	if err := s.migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return s, nil
}

// Close releases the database resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func ensureDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
            id TEXT PRIMARY KEY,
            provider_id TEXT NOT NULL,
            booking_id TEXT NOT NULL,
            title TEXT NOT NULL,
            description TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'not_started',
            priority TEXT NOT NULL DEFAULT 'medium',
            due_date DATETIME NOT NULL,
            notes TEXT NOT NULL DEFAULT '',
            tags TEXT NOT NULL DEFAULT '[]',
            estimated_hours REAL,
            actual_hours REAL NOT NULL DEFAULT 0,
            completed_at DATETIME,
            created_at DATETIME NOT NULL,
            position INTEGER NOT NULL DEFAULT 0,
            updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_provider ON tasks(provider_id);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_provider_booking ON tasks(provider_id, booking_id);`,
		`CREATE TRIGGER IF NOT EXISTS trg_tasks_booking_immutable
            BEFORE UPDATE OF booking_id ON tasks
            FOR EACH ROW WHEN NEW.booking_id <> OLD.booking_id BEGIN
                SELECT RAISE(ABORT, 'booking_id is immutable');
            END;`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.Wrap(err, "migration failed")
		}
	}
	return nil
}

const taskColumns = `id, booking_id, title, description, status, priority, due_date, notes, tags, estimated_hours, actual_hours, completed_at, created_at`

// SaveTask inserts or updates a task of the provider. New tasks are appended
// after the existing ones so ListTasks returns them in creation order.
func (s *Store) SaveTask(ctx context.Context, providerID string, t models.Task) error {
	tags, err := json.Marshal(nonNilTags(t.Tags))
	if err != nil {
		return errors.Wrap(err, "encode tags")
	}

	var estimated sql.NullFloat64
	if t.EstimatedHours != nil {
		estimated = sql.NullFloat64{Float64: *t.EstimatedHours, Valid: true}
	}
	var completedAt sql.NullTime
	if t.CompletedAt != nil {
		completedAt = sql.NullTime{Time: t.CompletedAt.UTC(), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO tasks(provider_id, `+taskColumns+`, position)
        VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
            (SELECT COALESCE(MAX(position), -1) + 1 FROM tasks WHERE provider_id = ?))
        ON CONFLICT(id) DO UPDATE SET
            title = excluded.title,
            description = excluded.description,
            status = excluded.status,
            priority = excluded.priority,
            due_date = excluded.due_date,
            notes = excluded.notes,
            tags = excluded.tags,
            estimated_hours = excluded.estimated_hours,
            actual_hours = excluded.actual_hours,
            completed_at = excluded.completed_at,
            updated_at = CURRENT_TIMESTAMP
        WHERE tasks.provider_id = excluded.provider_id`,
		providerID, t.ID, t.BookingID, t.Title, t.Description, string(t.Status), string(t.Priority),
		t.DueDate.UTC(), t.Notes, string(tags), estimated, t.ActualHours, completedAt, t.CreatedAt.UTC(),
		providerID,
	)
	if err != nil {
		return errors.Wrapf(err, "save task '%s'", t.ID)
	}

	return nil
}

// DeleteTask removes a task of the provider. Deleting a missing task is not
// an error since the in-memory board is authoritative.
func (s *Store) DeleteTask(ctx context.Context, providerID, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE provider_id = ? AND id = ?`, providerID, id); err != nil {
		return errors.Wrapf(err, "delete task '%s'", id)
	}
	return nil
}

// GetTask retrieves a task of the provider by id.
func (s *Store) GetTask(ctx context.Context, providerID, id string) (models.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE provider_id = ? AND id = ?`, providerID, id)

	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, errors.Wrapf(models.ErrNotFound, "task '%s'", id)
	}
	if err != nil {
		return models.Task{}, errors.Wrap(err, "get task")
	}
	return t, nil
}

// ListTasks returns the tasks of the provider in creation order.
func (s *Store) ListTasks(ctx context.Context, providerID string) ([]models.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE provider_id = ? ORDER BY position, created_at, id`, providerID)
	if err != nil {
		return nil, errors.Wrap(err, "list tasks")
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan task")
		}
		tasks = append(tasks, t)
	}
	return tasks, errors.WithStack(rows.Err())
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (models.Task, error) {
	var (
		t           models.Task
		status      string
		priority    string
		tags        string
		estimated   sql.NullFloat64
		completedAt sql.NullTime
		dueDate     time.Time
		createdAt   time.Time
	)

	if err := row.Scan(&t.ID, &t.BookingID, &t.Title, &t.Description, &status, &priority, &dueDate,
		&t.Notes, &tags, &estimated, &t.ActualHours, &completedAt, &createdAt); err != nil {
		return models.Task{}, err
	}

	t.Status = models.TaskStatus(status)
	t.Priority = models.Priority(priority)
	t.DueDate = dueDate
	t.CreatedAt = createdAt

	if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil {
		return models.Task{}, errors.Wrap(err, "decode tags")
	}
	if estimated.Valid {
		t.EstimatedHours = models.Float(estimated.Float64)
	}
	if completedAt.Valid {
		v := completedAt.Time
		t.CompletedAt = &v
	}

	return t, nil
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
