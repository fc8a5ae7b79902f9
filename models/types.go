// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "time"

// Broadcast event names
const (
	EventQuestionStarted = "question-started"
	EventTallyUpdated    = "tally-updated"
	EventSubmitAnswer    = "submitAnswer"
	EventError           = "error"
)

// Request types

type RegisterRequest struct {
	Name string `json:"name" validate:"required"`
}

type CreatePollRequest struct {
	Title     string `json:"title" validate:"required"`
	CreatedBy string `json:"createdBy" validate:"required"`
}

type AskQuestionRequest struct {
	Text    string   `json:"text" validate:"required"`
	Options []string `json:"options" validate:"required,min=2,unique,dive,required"`
}

type SubmitAnswerRequest struct {
	StudentID string `json:"studentId" validate:"required"`
	Answer    string `json:"answer" validate:"required"`
}

// Sent by clients over the live channel
type LiveSubmitAnswer struct {
	StudentID string `json:"studentId" validate:"required"`
	Option    string `json:"option" validate:"required"`
	PollID    string `json:"pollId" validate:"required"`
}

// Response types

type ListPollsResponse struct {
	Data []Poll `json:"data"`
}

type PollResultsResponse struct {
	Poll    string  `json:"poll"`
	Results []Tally `json:"results"`
}

type QuestionResultsResponse struct {
	Question   string         `json:"question"`
	Options    []string       `json:"options"`
	Counts     map[string]int `json:"counts"`
	TotalVotes int            `json:"totalVotes"`
}

// Domain types

type Teacher struct {
	ID        string    `json:"_id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
}

type Student struct {
	ID        string    `json:"_id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
}

type Poll struct {
	ID        string    `json:"_id" bson:"_id"`
	Title     string    `json:"title" bson:"title"`
	Questions []string  `json:"questions" bson:"-"` // question ids in creation order, derived on read
	CreatedBy string    `json:"createdBy" bson:"created_by"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
}

type Question struct {
	ID        string    `json:"_id" bson:"_id"`
	PollID    string    `json:"poll" bson:"poll_id"`
	Text      string    `json:"text" bson:"text"`
	Options   []string  `json:"options" bson:"options"`
	Seq       int       `json:"-" bson:"seq"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	ExpiresAt time.Time `json:"expiresAt" bson:"expires_at"`
	IsActive  bool      `json:"isActive" bson:"is_active"`
}

// Expired reports whether the answer window has closed at now.
func (q *Question) Expired(now time.Time) bool {
	return now.After(q.ExpiresAt)
}

type Answer struct {
	ID          string    `json:"_id" bson:"_id"`
	StudentID   string    `json:"student" bson:"student_id"`
	QuestionID  string    `json:"question" bson:"question_id"`
	Value       string    `json:"answer" bson:"answer"`
	SubmittedAt time.Time `json:"submittedAt" bson:"submitted_at"`
}

// Tally is derived from the answers of one question and never stored.
type Tally struct {
	QuestionID string         `json:"questionId"`
	PollID     string         `json:"pollId"`
	Question   string         `json:"question"`
	Options    []string       `json:"options"`
	Counts     map[string]int `json:"counts"`
	TotalVotes int            `json:"totalVotes"`
	Unlisted   []string       `json:"unlisted,omitempty"`
	IsActive   bool           `json:"isActive"`
	ExpiresAt  time.Time      `json:"expiresAt"`
}

// Live channel types

type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

type QuestionStarted struct {
	PollID   string   `json:"pollId"`
	Question Question `json:"question"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
