// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"reflect"
	"testing"
	"time"

	"github.com/danielhkuo/classpoll/models"
)

func answersFor(values ...string) []models.Answer {
	answers := make([]models.Answer, len(values))
	for i, v := range values {
		answers[i] = models.Answer{ID: string(rune('a' + i)), QuestionID: "q1", Value: v}
	}
	return answers
}

func TestCompute(t *testing.T) {
	question := models.Question{
		ID:        "q1",
		PollID:    "p1",
		Text:      "Pick one",
		Options:   []string{"A", "B", "C"},
		IsActive:  true,
		ExpiresAt: time.Now().Add(time.Minute),
	}

	tests := []struct {
		name         string
		answers      []models.Answer
		wantCounts   map[string]int
		wantTotal    int
		wantUnlisted []string
	}{
		{
			name:       "no answers",
			answers:    nil,
			wantCounts: map[string]int{"A": 0, "B": 0, "C": 0},
			wantTotal:  0,
		},
		{
			name:       "mixed answers",
			answers:    answersFor("A", "B", "A"),
			wantCounts: map[string]int{"A": 2, "B": 1, "C": 0},
			wantTotal:  3,
		},
		{
			name:         "undeclared values are counted and flagged",
			answers:      answersFor("A", "Z", "Z", "Y"),
			wantCounts:   map[string]int{"A": 1, "B": 0, "C": 0, "Z": 2, "Y": 1},
			wantTotal:    4,
			wantUnlisted: []string{"Y", "Z"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(question, tt.answers)

			if !reflect.DeepEqual(got.Counts, tt.wantCounts) {
				t.Errorf("Counts = %v, want %v", got.Counts, tt.wantCounts)
			}
			if got.TotalVotes != tt.wantTotal {
				t.Errorf("TotalVotes = %d, want %d", got.TotalVotes, tt.wantTotal)
			}
			if Sum(got) != got.TotalVotes {
				t.Errorf("Sum(counts) = %d, TotalVotes = %d", Sum(got), got.TotalVotes)
			}
			if !reflect.DeepEqual(got.Unlisted, tt.wantUnlisted) {
				t.Errorf("Unlisted = %v, want %v", got.Unlisted, tt.wantUnlisted)
			}
			if got.QuestionID != "q1" || got.PollID != "p1" || got.Question != "Pick one" {
				t.Errorf("identity fields not carried over: %+v", got)
			}
			if !got.IsActive {
				t.Error("Expected IsActive to be carried over")
			}
		})
	}
}

func TestComputeDoesNotShareOptions(t *testing.T) {
	question := models.Question{ID: "q1", Options: []string{"A", "B"}}

	got := Compute(question, nil)
	got.Options[0] = "changed"

	if question.Options[0] != "A" {
		t.Error("Compute should copy the option list")
	}
}
