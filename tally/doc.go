// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package tally turns the answers of a question into vote counts.

	t := tally.Compute(question, answers)

Compute is pure: it never touches storage and is recomputed from the full
answer set on every broadcast. Declared options always appear in Counts;
values outside the declared list are counted and reported in Unlisted.
TotalVotes equals the number of answers and the sum of Counts.
*/
package tally
