// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"sort"

	"github.com/danielhkuo/classpoll/models"
)

// Compute counts the answers of a question per option.
// Every declared option is present in Counts, with 0 when nobody chose it.
// Answers whose value is not a declared option are still counted under their
// own key and listed in Unlisted.
func Compute(q models.Question, answers []models.Answer) models.Tally {
	counts := make(map[string]int, len(q.Options))
	declared := make(map[string]bool, len(q.Options))
	for _, opt := range q.Options {
		counts[opt] = 0
		declared[opt] = true
	}

	var unlisted []string
	for _, a := range answers {
		if !declared[a.Value] && counts[a.Value] == 0 {
			unlisted = append(unlisted, a.Value)
		}
		counts[a.Value]++
	}
	sort.Strings(unlisted)

	options := make([]string, len(q.Options))
	copy(options, q.Options)

	return models.Tally{
		QuestionID: q.ID,
		PollID:     q.PollID,
		Question:   q.Text,
		Options:    options,
		Counts:     counts,
		TotalVotes: len(answers),
		Unlisted:   unlisted,
		IsActive:   q.IsActive,
		ExpiresAt:  q.ExpiresAt,
	}
}

// Sum adds up all counts, including unlisted values.
func Sum(t models.Tally) int {
	total := 0
	for _, c := range t.Counts {
		total += c
	}
	return total
}
