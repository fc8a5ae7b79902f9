// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielhkuo/classpoll/broadcast"
	"github.com/danielhkuo/classpoll/cliparse"
	"github.com/danielhkuo/classpoll/lifecycle"
	"github.com/danielhkuo/classpoll/models"
	"github.com/danielhkuo/classpoll/testutil"
)

func newTestRouter(t *testing.T, cfg cliparse.Config) (*http.ServeMux, *broadcast.Hub) {
	t.Helper()

	store := testutil.SetupTestDB(t)
	hub := broadcast.NewHub()
	t.Cleanup(hub.Close)

	manager := lifecycle.NewManager(store, hub, cfg)
	return NewRouter(manager, hub, cfg), hub
}

func serve(mux *http.ServeMux, method, path string, body interface{}) *httptest.ResponseRecorder {
	req := testutil.MakeRequest(method, path, body, nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	mux, _ := newTestRouter(t, testutil.GetTestConfig())

	w := serve(mux, "GET", "/health", nil)

	testutil.AssertStatus(t, w, http.StatusOK)
	var resp map[string]string
	testutil.AssertJSON(t, w, &resp)
	if resp["status"] != "OK" {
		t.Errorf("Expected status OK, got %v", resp)
	}
}

func TestRootEndpoint(t *testing.T) {
	mux, _ := newTestRouter(t, testutil.GetTestConfig())

	w := serve(mux, "GET", "/", nil)
	testutil.AssertStatus(t, w, http.StatusOK)
	if w.Body.String() != "Welcome to the ClassPoll API" {
		t.Errorf("Unexpected banner '%s'", w.Body.String())
	}

	w = serve(mux, "GET", "/no-such-page", nil)
	testutil.AssertStatus(t, w, http.StatusNotFound)
}

func TestMetricsEndpoint(t *testing.T) {
	mux, _ := newTestRouter(t, testutil.GetTestConfig())

	w := serve(mux, "GET", "/metrics", nil)

	testutil.AssertStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), "classpoll_questions_asked_total") {
		t.Error("Expected classpoll metrics in exposition")
	}
}

func TestRouteExistence(t *testing.T) {
	mux, _ := newTestRouter(t, testutil.GetTestConfig())

	// 400 and 404 are valid handler responses; 405 or a banner means no route
	testCases := []struct {
		method string
		path   string
	}{
		{"POST", "/api/teacher/register"},
		{"POST", "/api/teacher/polls"},
		{"GET", "/api/teacher/polls"},
		{"POST", "/api/teacher/polls/p1/questions"},
		{"GET", "/api/teacher/polls/p1/results"},
		{"POST", "/api/teacher/questions/q1/close"},
		{"POST", "/api/student/register"},
		{"GET", "/api/student/polls/p1/active-question"},
		{"POST", "/api/student/questions/q1/answer"},
		{"GET", "/api/student/questions/q1/results"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			w := serve(mux, tc.method, tc.path, nil)

			if w.Code == http.StatusMethodNotAllowed {
				t.Errorf("Route %s %s returned 405, expected route handler to exist", tc.method, tc.path)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Route %s %s answered with %q, expected a JSON handler", tc.method, tc.path, ct)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	mux, _ := newTestRouter(t, testutil.GetTestConfig())

	testCases := []struct {
		method string
		path   string
	}{
		{"POST", "/health"},
		{"DELETE", "/api/teacher/polls"},
		{"PUT", "/api/student/questions/q1/answer"},
		{"GET", "/api/teacher/questions/q1/close"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			w := serve(mux, tc.method, tc.path, nil)

			if w.Code != http.StatusMethodNotAllowed {
				t.Errorf("Expected 405 for %s %s, got %d", tc.method, tc.path, w.Code)
			}
		})
	}
}

func TestCustomPrefix(t *testing.T) {
	cfg := testutil.GetTestConfig()
	cfg.APIPrefix = ""
	mux, _ := newTestRouter(t, cfg)

	w := serve(mux, "POST", "/teacher/register", models.RegisterRequest{Name: "T"})
	testutil.AssertStatus(t, w, http.StatusCreated)

	w = serve(mux, "POST", "/api/teacher/register", models.RegisterRequest{Name: "T"})
	testutil.AssertStatus(t, w, http.StatusNotFound)
}

func TestClassroomFlow(t *testing.T) {
	mux, hub := newTestRouter(t, testutil.GetTestConfig())

	events, cancel := hub.Subscribe()
	defer cancel()

	w := serve(mux, "POST", "/api/teacher/register", models.RegisterRequest{Name: "Ms. Rivera"})
	testutil.AssertStatus(t, w, http.StatusCreated)
	var teacher models.Teacher
	testutil.AssertJSON(t, w, &teacher)

	w = serve(mux, "POST", "/api/teacher/polls", models.CreatePollRequest{Title: "Period 2", CreatedBy: teacher.ID})
	testutil.AssertStatus(t, w, http.StatusCreated)
	var poll models.Poll
	testutil.AssertJSON(t, w, &poll)

	w = serve(mux, "POST", "/api/teacher/polls/"+poll.ID+"/questions",
		models.AskQuestionRequest{Text: "Capital of France?", Options: []string{"Paris", "Lyon"}})
	testutil.AssertStatus(t, w, http.StatusCreated)
	var question models.Question
	testutil.AssertJSON(t, w, &question)
	if !question.IsActive {
		t.Fatal("New question should be active")
	}

	if msg := <-events; msg.Event != models.EventQuestionStarted {
		t.Errorf("Expected question-started, got %s", msg.Event)
	}

	w = serve(mux, "POST", "/api/student/register", models.RegisterRequest{Name: "Ada"})
	testutil.AssertStatus(t, w, http.StatusCreated)
	var student models.Student
	testutil.AssertJSON(t, w, &student)

	w = serve(mux, "GET", "/api/student/polls/"+poll.ID+"/active-question", nil)
	testutil.AssertStatus(t, w, http.StatusOK)

	w = serve(mux, "GET", "/api/student/questions/"+question.ID+"/results?studentId="+student.ID, nil)
	testutil.AssertStatus(t, w, http.StatusForbidden)

	w = serve(mux, "POST", "/api/student/questions/"+question.ID+"/answer",
		models.SubmitAnswerRequest{StudentID: student.ID, Answer: "Paris"})
	testutil.AssertStatus(t, w, http.StatusCreated)

	if msg := <-events; msg.Event != models.EventTallyUpdated {
		t.Errorf("Expected tally-updated, got %s", msg.Event)
	}

	w = serve(mux, "GET", "/api/student/questions/"+question.ID+"/results?studentId="+student.ID, nil)
	testutil.AssertStatus(t, w, http.StatusOK)
	var results models.QuestionResultsResponse
	testutil.AssertJSON(t, w, &results)
	if results.Counts["Paris"] != 1 || results.TotalVotes != 1 {
		t.Errorf("Unexpected results %+v", results)
	}

	w = serve(mux, "POST", "/api/teacher/questions/"+question.ID+"/close", nil)
	testutil.AssertStatus(t, w, http.StatusOK)

	w = serve(mux, "GET", "/api/student/polls/"+poll.ID+"/active-question", nil)
	testutil.AssertStatus(t, w, http.StatusNotFound)

	w = serve(mux, "GET", "/api/teacher/polls/"+poll.ID+"/results", nil)
	testutil.AssertStatus(t, w, http.StatusOK)
	var summary models.PollResultsResponse
	testutil.AssertJSON(t, w, &summary)
	if summary.Poll != "Period 2" || len(summary.Results) != 1 || summary.Results[0].IsActive {
		t.Errorf("Unexpected poll results %+v", summary)
	}

	w = serve(mux, "GET", "/api/teacher/polls?createdBy="+teacher.ID, nil)
	testutil.AssertStatus(t, w, http.StatusOK)
	var list models.ListPollsResponse
	testutil.AssertJSON(t, w, &list)
	if len(list.Data) != 1 || len(list.Data[0].Questions) != 1 {
		t.Errorf("Unexpected poll list %+v", list)
	}
}
