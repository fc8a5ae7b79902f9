// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, domain and live-channel types.

# Request Types

Types for parsing incoming JSON (validated with struct tags):

  - RegisterRequest: name
  - CreatePollRequest: title, createdBy
  - AskQuestionRequest: text, options (at least 2, unique)
  - SubmitAnswerRequest: studentId, answer
  - LiveSubmitAnswer: studentId, option, pollId (WebSocket submitAnswer)

# Response Types

  - ListPollsResponse: data
  - PollResultsResponse: poll title, per-question tallies
  - QuestionResultsResponse: question, options, counts, totalVotes
  - ErrorResponse: error, message

# Domain Types

  - Teacher, Student: anonymous identities, a new one per registration
  - Poll: title, owner and the ordered ids of its questions
  - Question: options, answer window and the one-way isActive flag
  - Answer: one student's choice for one question
  - Tally: per-option counts derived from answers

Identifiers serialize as "_id" and references as "poll", "student" and
"question" so existing clients keep working.

# Events

Everything pushed to live subscribers is wrapped in an Event envelope:

	{"event": "tally-updated", "data": {...}}

Event names:

	EventQuestionStarted = "question-started"
	EventTallyUpdated    = "tally-updated"
	EventSubmitAnswer    = "submitAnswer" (client to server)
	EventError           = "error"        (server to one client)
*/
package models
