// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/classpoll/cliparse"
	"github.com/danielhkuo/classpoll/db"
	"github.com/danielhkuo/classpoll/models"
)

// SetupTestDB creates a fresh SQLite database with the full schema in the
// test's temp dir. It is closed when the test ends.
func SetupTestDB(t *testing.T) *db.SQLStore {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db")
	store, err := db.OpenSQL(context.Background(), cliparse.DatabaseSQLite, dsn)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:             3318,
		DatabaseType:     cliparse.DatabaseSQLite,
		DatabaseURL:      ":memory:",
		QuestionWindow:   60 * time.Second,
		SweepInterval:    10 * time.Second,
		CORSOrigins:      []string{cliparse.DefaultCORSOrigin},
		APIPrefix:        cliparse.DefaultAPIPrefix,
		RabbitMQExchange: cliparse.DefaultExchange,
	}
}

// CreateTestStudent inserts a student directly and returns its ID
func CreateTestStudent(t *testing.T, store db.Store, name string) string {
	t.Helper()

	s := &models.Student{ID: uuid.NewString(), Name: name, CreatedAt: time.Now().UTC()}
	if err := store.CreateStudent(context.Background(), s); err != nil {
		t.Fatalf("Failed to create test student: %v", err)
	}
	return s.ID
}

// CreateTestPoll inserts a poll directly and returns its ID
func CreateTestPoll(t *testing.T, store db.Store, createdBy string) string {
	t.Helper()

	p := &models.Poll{
		ID:        uuid.NewString(),
		Title:     "Test Poll",
		Questions: []string{},
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.CreatePoll(context.Background(), p); err != nil {
		t.Fatalf("Failed to create test poll: %v", err)
	}
	return p.ID
}

// CreateTestQuestion inserts an active question whose window ends at
// createdAt+window. A negative window yields an overdue question.
func CreateTestQuestion(t *testing.T, store db.Store, pollID string, window time.Duration, options ...string) *models.Question {
	t.Helper()

	if len(options) == 0 {
		options = []string{"A", "B"}
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	q := &models.Question{
		ID:        uuid.NewString(),
		PollID:    pollID,
		Text:      "Test question?",
		Options:   options,
		CreatedAt: now,
		ExpiresAt: now.Add(window),
		IsActive:  true,
	}
	if err := store.InsertQuestion(context.Background(), q); err != nil {
		t.Fatalf("Failed to create test question: %v", err)
	}
	return q
}

// Recorder is a publisher that keeps every event it receives.
type Recorder struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *Recorder) Publish(ev models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events, optionally filtered by name.
func (r *Recorder) Events(name string) []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.Event
	for _, ev := range r.events {
		if name == "" || ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

// LastTally returns the payload of the most recent tally-updated event.
func (r *Recorder) LastTally(t *testing.T) models.Tally {
	t.Helper()

	evs := r.Events(models.EventTallyUpdated)
	if len(evs) == 0 {
		t.Fatal("No tally-updated event recorded")
	}
	tally, ok := evs[len(evs)-1].Data.(models.Tally)
	if !ok {
		t.Fatalf("tally-updated payload has type %T", evs[len(evs)-1].Data)
	}
	return tally
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
