// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gorilla/websocket"

	"github.com/danielhkuo/classpoll/broadcast"
	"github.com/danielhkuo/classpoll/db"
	"github.com/danielhkuo/classpoll/lifecycle"
	"github.com/danielhkuo/classpoll/models"
	"github.com/danielhkuo/classpoll/testutil"
)

type liveEnv struct {
	store   db.Store
	hub     *broadcast.Hub
	manager *lifecycle.Manager
	server  *httptest.Server
}

func setupLiveEnv(t *testing.T) *liveEnv {
	t.Helper()

	cfg := testutil.GetTestConfig()
	store := testutil.SetupTestDB(t)
	hub := broadcast.NewHub()
	manager := lifecycle.NewManager(store, hub, cfg)
	live := NewLiveHandler(hub, manager, cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", live.ServeWS)
	mux.HandleFunc("GET /events", live.ServeSSE)
	server := httptest.NewServer(mux)

	// Cleanups run in reverse: closing the hub ends open streams first
	t.Cleanup(server.Close)
	t.Cleanup(hub.Close)

	return &liveEnv{store: store, hub: hub, manager: manager, server: server}
}

func (e *liveEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func readEnvelope(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("Message is not an envelope: %s", data)
	}
	return env
}

func sendSubmit(t *testing.T, conn *websocket.Conn, req models.LiveSubmitAnswer) {
	t.Helper()
	err := conn.WriteJSON(map[string]interface{}{"event": models.EventSubmitAnswer, "data": req})
	if err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
}

func expectError(t *testing.T, conn *websocket.Conn, message string) {
	t.Helper()
	env := readEnvelope(t, conn)
	if env.Event != models.EventError {
		t.Fatalf("Expected error event, got %s", env.Event)
	}
	var resp models.ErrorResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Message != message {
		t.Errorf("Expected error %q, got %q", message, resp.Message)
	}
}

func TestWebSocketBroadcast(t *testing.T) {
	env := setupLiveEnv(t)
	ctx := context.Background()

	sender := env.dial(t)
	watcher := env.dial(t)

	pollID := testutil.CreateTestPoll(t, env.store, "teacher-1")
	studentID := testutil.CreateTestStudent(t, env.store, "Ada")

	q, err := env.manager.AskQuestion(ctx, pollID, "2 + 2?", []string{"3", "4"})
	if err != nil {
		t.Fatal(err)
	}

	for _, conn := range []*websocket.Conn{sender, watcher} {
		got := readEnvelope(t, conn)
		if got.Event != models.EventQuestionStarted {
			t.Fatalf("Expected question-started, got %s", got.Event)
		}
		var started models.QuestionStarted
		if err := json.Unmarshal(got.Data, &started); err != nil {
			t.Fatal(err)
		}
		if started.PollID != pollID || started.Question.ID != q.ID {
			t.Errorf("Unexpected question-started payload %s", got.Data)
		}
	}

	sendSubmit(t, sender, models.LiveSubmitAnswer{StudentID: studentID, Option: "4", PollID: pollID})

	for _, conn := range []*websocket.Conn{sender, watcher} {
		got := readEnvelope(t, conn)
		if got.Event != models.EventTallyUpdated {
			t.Fatalf("Expected tally-updated, got %s", got.Event)
		}
		var tally models.Tally
		if err := json.Unmarshal(got.Data, &tally); err != nil {
			t.Fatal(err)
		}
		if tally.QuestionID != q.ID || tally.Counts["4"] != 1 || tally.TotalVotes != 1 || !tally.IsActive {
			t.Errorf("Unexpected tally %+v", tally)
		}
	}
}

func TestWebSocketErrorsGoToSenderOnly(t *testing.T) {
	env := setupLiveEnv(t)
	ctx := context.Background()

	sender := env.dial(t)
	watcher := env.dial(t)

	idle := testutil.CreateTestPoll(t, env.store, "teacher-1")
	pollID := testutil.CreateTestPoll(t, env.store, "teacher-1")
	studentID := testutil.CreateTestStudent(t, env.store, "Ada")

	if _, err := env.manager.AskQuestion(ctx, pollID, "Ready?", []string{"yes", "no"}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.manager.SubmitAnswerForPoll(ctx, pollID, studentID, "yes"); err != nil {
		t.Fatal(err)
	}
	// Drain question-started and tally-updated
	for _, conn := range []*websocket.Conn{sender, watcher} {
		readEnvelope(t, conn)
		readEnvelope(t, conn)
	}

	testCases := []struct {
		name    string
		send    func(*websocket.Conn) error
		message string
	}{
		{
			name:    "invalid json",
			send:    func(c *websocket.Conn) error { return c.WriteMessage(websocket.TextMessage, []byte("{nope")) },
			message: "Invalid JSON",
		},
		{
			name:    "unknown event",
			send:    func(c *websocket.Conn) error { return c.WriteJSON(map[string]string{"event": "bogus"}) },
			message: "Unknown event bogus",
		},
		{
			name: "missing poll",
			send: func(c *websocket.Conn) error {
				return c.WriteJSON(map[string]interface{}{
					"event": models.EventSubmitAnswer,
					"data":  models.LiveSubmitAnswer{StudentID: studentID, Option: "yes"},
				})
			},
			message: "pollId is required",
		},
		{
			name: "no active question",
			send: func(c *websocket.Conn) error {
				return c.WriteJSON(map[string]interface{}{
					"event": models.EventSubmitAnswer,
					"data":  models.LiveSubmitAnswer{StudentID: studentID, Option: "yes", PollID: idle},
				})
			},
			message: "No active question",
		},
		{
			name: "duplicate",
			send: func(c *websocket.Conn) error {
				return c.WriteJSON(map[string]interface{}{
					"event": models.EventSubmitAnswer,
					"data":  models.LiveSubmitAnswer{StudentID: studentID, Option: "no", PollID: pollID},
				})
			},
			message: "Already answered",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.send(sender); err != nil {
				t.Fatal(err)
			}
			expectError(t, sender, tc.message)
		})
	}

	// The watcher saw none of the errors: its next message is the marker
	env.hub.Publish(models.Event{Name: "marker"})
	if got := readEnvelope(t, watcher); got.Event != "marker" {
		t.Errorf("Watcher received %s before the marker", got.Event)
	}
}

func TestWebSocketClosesWithHub(t *testing.T) {
	env := setupLiveEnv(t)
	conn := env.dial(t)

	env.hub.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("Expected going-away close, got %v", err)
	}
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	env := setupLiveEnv(t)

	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatal("Expected handshake to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403, got %v", resp)
	}

	deadline := time.Now().Add(time.Second)
	for env.hub.Subscribers() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := env.hub.Subscribers(); n != 0 {
		t.Errorf("Rejected client left %d subscriptions", n)
	}
}

func TestCheckOrigin(t *testing.T) {
	cfg := testutil.GetTestConfig()
	h := NewLiveHandler(broadcast.NewHub(), nil, cfg)

	testCases := []struct {
		name    string
		origins []string
		origin  string
		allowed bool
	}{
		{"no origin", cfg.CORSOrigins, "", true},
		{"configured origin", cfg.CORSOrigins, "http://localhost:5173", true},
		{"other origin", cfg.CORSOrigins, "http://evil.example", false},
		{"wildcard", []string{"*"}, "http://anything.example", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h.cfg.CORSOrigins = tc.origins
			req := httptest.NewRequest("GET", "/ws", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			if got := h.checkOrigin(req); got != tc.allowed {
				t.Errorf("checkOrigin(%q) = %v, want %v", tc.origin, got, tc.allowed)
			}
		})
	}
}

// readSSE returns the next event name and data from an event stream.
func readSSE(t *testing.T, lines *bufio.Scanner) (string, string) {
	t.Helper()
	var name, data string
	for lines.Scan() {
		line := lines.Text()
		switch {
		case line == "":
			if name != "" || data != "" {
				return name, data
			}
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
	t.Fatalf("Stream ended: %v", lines.Err())
	return "", ""
}

func TestServerSentEvents(t *testing.T) {
	env := setupLiveEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", env.server.URL+"/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, sse.ContentType) {
		t.Errorf("Expected %s, got %s", sse.ContentType, ct)
	}

	pollID := testutil.CreateTestPoll(t, env.store, "teacher-1")
	q, err := env.manager.AskQuestion(context.Background(), pollID, "Best editor?", []string{"vim", "emacs"})
	if err != nil {
		t.Fatal(err)
	}

	lines := bufio.NewScanner(resp.Body)
	name, data := readSSE(t, lines)
	if name != models.EventQuestionStarted {
		t.Fatalf("Expected question-started, got %q", name)
	}
	var started models.QuestionStarted
	if err := json.Unmarshal([]byte(data), &started); err != nil {
		t.Fatalf("Bad data %q: %v", data, err)
	}
	if started.Question.ID != q.ID {
		t.Errorf("Expected question %s, got %s", q.ID, started.Question.ID)
	}

	if _, _, err := env.manager.ExpireQuestion(context.Background(), q.ID); err != nil {
		t.Fatal(err)
	}
	name, data = readSSE(t, lines)
	if name != models.EventTallyUpdated {
		t.Fatalf("Expected tally-updated, got %q", name)
	}
	var tally models.Tally
	if err := json.Unmarshal([]byte(data), &tally); err != nil {
		t.Fatal(err)
	}
	if tally.IsActive || tally.TotalVotes != 0 {
		t.Errorf("Expected closed empty tally, got %+v", tally)
	}
}
