// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the ClassPoll API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(manager, hub, cfg)

REST routes live under cfg.APIPrefix (default "/api"). Operational and
live routes are never prefixed.

# Endpoints

Operational:

	GET /health  - {"status":"OK"}
	GET /metrics - Prometheus exposition
	GET /        - Welcome banner

Teacher:

	POST {prefix}/teacher/register
	POST {prefix}/teacher/polls
	GET  {prefix}/teacher/polls?createdBy=
	POST {prefix}/teacher/polls/{pollId}/questions
	GET  {prefix}/teacher/polls/{pollId}/results
	POST {prefix}/teacher/questions/{questionId}/close

Student:

	POST {prefix}/student/register
	GET  {prefix}/student/polls/{pollId}/active-question
	POST {prefix}/student/questions/{questionId}/answer
	GET  {prefix}/student/questions/{questionId}/results?studentId=

Live:

	GET /ws     - WebSocket
	GET /events - Server-Sent Events

CORS is applied by the caller around the whole mux.
*/
package router
