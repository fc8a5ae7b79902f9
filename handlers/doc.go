// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the ClassPoll API.

# Handler Types

Each handler is a struct wrapping the lifecycle manager and config:

  - TeacherHandler: registration, polls, asking and closing questions
  - StudentHandler: registration, the active question, answers and results
  - LiveHandler: the broadcast channel over WebSocket and SSE

Handlers are created via constructor functions:

	teacherHandler := handlers.NewTeacherHandler(manager, cfg)
	liveHandler := handlers.NewLiveHandler(hub, manager, cfg)

# Teacher Routes

	POST /teacher/register                   → Register
	POST /teacher/polls                      → CreatePoll
	GET  /teacher/polls?createdBy=           → ListPolls
	POST /teacher/polls/{pollId}/questions   → AskQuestion
	GET  /teacher/polls/{pollId}/results     → GetPollResults
	POST /teacher/questions/{questionId}/close → CloseQuestion

# Student Routes

	POST /student/register                          → Register
	GET  /student/polls/{pollId}/active-question    → GetActiveQuestion
	POST /student/questions/{questionId}/answer     → SubmitAnswer
	GET  /student/questions/{questionId}/results    → GetResults

Results of a running question are hidden (403) until the student has
answered.

# Errors

Lifecycle errors map to statuses by kind: validation and conflict 400,
not found 404, results not yet available 403, anything else 500 with a
generic message. Bodies are always:

	{"error": "Bad Request", "message": "Already answered"}

# Live Channel

GET /ws upgrades to a WebSocket. Every connection receives every
question-started and tally-updated event as {"event", "data"} frames.
Clients may send submitAnswer; failures come back to that client only as
an error event.

GET /events streams the same events as Server-Sent Events with a
periodic ping.
*/
package handlers
