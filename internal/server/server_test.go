package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"taskboard/internal/board"
	"taskboard/internal/catalog"
	"taskboard/internal/models"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	c, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default() err=%v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	b, err := board.New(board.Options{ProviderID: "provider-1", Catalog: c, Logger: logger})
	if err != nil {
		t.Fatalf("board.New() err=%v", err)
	}

	return New(b, logger, "")
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json.Marshal() err=%v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("json.Unmarshal(%s) err=%v", rec.Body.String(), err)
	}
	return out
}

type taskEnvelope struct {
	Task models.Task `json:"task"`
}

func createTask(t *testing.T, s *Server, title string) models.Task {
	t.Helper()

	rec := do(t, s, http.MethodPost, "/api/tasks", map[string]any{
		"booking_id":  "bk-1",
		"title":       title,
		"description": "details of " + title,
		"due_date":    "2026-09-10T09:00:00Z",
		"priority":    "high",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /api/tasks status=%d body=%s", rec.Code, rec.Body.String())
	}
	return decode[taskEnvelope](t, rec).Task
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/healthz", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) || !strings.Contains(rec.Body.String(), `"persistenceErrors"`) {
		t.Fatalf("GET /api/healthz = %d %s", rec.Code, rec.Body.String())
	}
}

func TestTaskLifecycle(t *testing.T) {
	s := newTestServer(t)
	task := createTask(t, s, "Inspect")

	if task.ID == "" || task.Priority != models.PriorityHigh || task.Status != models.StatusNotStarted {
		t.Fatalf("created task = %+v", task)
	}

	rec := do(t, s, http.MethodGet, "/api/tasks/"+task.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET task status=%d", rec.Code)
	}

	rec = do(t, s, http.MethodPatch, "/api/tasks/"+task.ID, map[string]any{"notes": "bring ladder"})
	if rec.Code != http.StatusOK || decode[taskEnvelope](t, rec).Task.Notes != "bring ladder" {
		t.Fatalf("PATCH task = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodPut, "/api/tasks/"+task.ID+"/status", map[string]any{"status": "in_progress"})
	if rec.Code != http.StatusOK || decode[taskEnvelope](t, rec).Task.Status != models.StatusInProgress {
		t.Fatalf("PUT status = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodPost, "/api/tasks/"+task.ID+"/duplicate", nil)
	if rec.Code != http.StatusCreated || decode[taskEnvelope](t, rec).Task.Title != "Inspect (Copy)" {
		t.Fatalf("POST duplicate = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodPost, "/api/tasks/"+task.ID+"/complete", nil)
	completed := decode[taskEnvelope](t, rec).Task
	if rec.Code != http.StatusOK || completed.Status != models.StatusCompleted || completed.CompletedAt == nil {
		t.Fatalf("POST complete = %d %s", rec.Code, rec.Body.String())
	}
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)
	task := createTask(t, s, "Inspect")

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"missing title", http.MethodPost, "/api/tasks", map[string]any{"booking_id": "bk-1", "description": "d", "due_date": "2026-09-10T09:00:00Z"}, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/api/tasks", "not an object", http.StatusBadRequest},
		{"unknown task", http.MethodGet, "/api/tasks/missing", nil, http.StatusNotFound},
		{"bad status", http.MethodPut, "/api/tasks/" + task.ID + "/status", map[string]any{"status": "done"}, http.StatusBadRequest},
		{"booking id change", http.MethodPatch, "/api/tasks/" + task.ID, map[string]any{"booking_id": "bk-2"}, http.StatusBadRequest},
		{"bad sort", http.MethodGet, "/api/tasks?sort=owner", nil, http.StatusBadRequest},
		{"unconfirmed delete", http.MethodDelete, "/api/tasks/" + task.ID, nil, http.StatusPreconditionRequired},
		{"unconfirmed bulk delete", http.MethodPost, "/api/tasks/bulk/delete", map[string]any{"ids": []string{task.ID}}, http.StatusPreconditionRequired},
		{"empty bulk", http.MethodPost, "/api/tasks/bulk/complete", map[string]any{"ids": []string{}}, http.StatusBadRequest},
		{"track unknown task", http.MethodPost, "/api/tracker/start", map[string]any{"task_id": "missing"}, http.StatusNotFound},
		{"unknown endpoint", http.MethodGet, "/api/nope", nil, http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, s, tc.method, tc.path, tc.body)
			if rec.Code != tc.want {
				t.Fatalf("%s %s status=%d, want %d (%s)", tc.method, tc.path, rec.Code, tc.want, rec.Body.String())
			}
		})
	}

	if rec := do(t, s, http.MethodGet, "/api/tasks/"+task.ID, nil); rec.Code != http.StatusOK {
		t.Fatalf("task was deleted without confirmation")
	}
}

func TestDelete_Confirmed(t *testing.T) {
	s := newTestServer(t)
	task := createTask(t, s, "Inspect")

	rec := do(t, s, http.MethodDelete, "/api/tasks/"+task.ID+"?confirm=true", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("DELETE status=%d, want 200", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/tasks/"+task.ID, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("GET deleted task status=%d, want 404", rec.Code)
	}
}

func TestBulk(t *testing.T) {
	s := newTestServer(t)
	a := createTask(t, s, "A")
	b := createTask(t, s, "B")

	rec := do(t, s, http.MethodPost, "/api/tasks/bulk/complete", map[string]any{"ids": []string{a.ID, "missing"}})
	result := decode[board.BulkResult](t, rec)
	if rec.Code != http.StatusOK || len(result.Affected) != 1 || len(result.Missing) != 1 {
		t.Fatalf("bulk complete = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodPost, "/api/tasks/bulk/delete?confirm=true", map[string]any{"ids": []string{a.ID, b.ID}})
	result = decode[board.BulkResult](t, rec)
	if rec.Code != http.StatusOK || len(result.Affected) != 2 {
		t.Fatalf("bulk delete = %d %s", rec.Code, rec.Body.String())
	}
}

func TestListTasks_Query(t *testing.T) {
	s := newTestServer(t)
	createTask(t, s, "Replace wiring")
	createTask(t, s, "Paint walls")

	rec := do(t, s, http.MethodGet, "/api/tasks?search=WIRING&status=all&sort=title&order=desc", nil)
	body := decode[struct {
		Tasks []models.Task `json:"tasks"`
	}](t, rec)
	if rec.Code != http.StatusOK || len(body.Tasks) != 1 || body.Tasks[0].Title != "Replace wiring" {
		t.Fatalf("GET /api/tasks = %d %s", rec.Code, rec.Body.String())
	}
}

func TestTracker(t *testing.T) {
	s := newTestServer(t)
	task := createTask(t, s, "Inspect")

	rec := do(t, s, http.MethodGet, "/api/tracker", nil)
	if !strings.Contains(rec.Body.String(), `"active":false`) {
		t.Fatalf("GET /api/tracker = %s", rec.Body.String())
	}

	rec = do(t, s, http.MethodPost, "/api/tracker/start", map[string]any{"task_id": task.ID})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), task.ID) {
		t.Fatalf("POST /api/tracker/start = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodPost, "/api/tracker/stop", nil)
	stopped := decode[board.TrackingResult](t, rec)
	if rec.Code != http.StatusOK || stopped.TaskID != task.ID {
		t.Fatalf("POST /api/tracker/stop = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodPost, "/api/tracker/stop", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"active":false`) {
		t.Fatalf("second stop = %d %s", rec.Code, rec.Body.String())
	}
}

func TestSyncBookings(t *testing.T) {
	s := newTestServer(t)
	feed := map[string]any{"bookings": []map[string]any{
		{"id": "bk-9", "provider_id": "provider-1", "status": "Confirmed", "service_type": "Plumbing Repair", "date": "2026-09-20T10:00:00Z"},
		{"id": "bk-10", "provider_id": "someone-else", "status": "Confirmed", "service_type": "Plumbing Repair", "date": "2026-09-20T10:00:00Z"},
		{"id": "bk-11", "status": "Confirmed", "service_type": "Plumbing Repair", "date": "2026-09-20T10:00:00Z"},
	}}

	rec := do(t, s, http.MethodPost, "/api/bookings/sync", feed)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /api/bookings/sync = %d %s", rec.Code, rec.Body.String())
	}
	first := decode[map[string]int](t, rec)
	if first["generated"] != 4 || first["ignored"] != 2 {
		t.Fatalf("first sync = %v, want 4 generated and 2 ignored", first)
	}

	rec = do(t, s, http.MethodPost, "/api/bookings/sync", feed)
	if second := decode[map[string]int](t, rec); second["generated"] != 0 {
		t.Fatalf("second sync = %v, want nothing generated", second)
	}

	rec = do(t, s, http.MethodGet, "/api/analytics", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"total":4`) {
		t.Fatalf("GET /api/analytics = %d %s", rec.Code, rec.Body.String())
	}
}

func TestTemplatesAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/templates", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "electrical") {
		t.Fatalf("GET /api/templates = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "taskboard_") {
		t.Fatalf("GET /metrics = %d", rec.Code)
	}
}
