// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package lifecycle implements the question lifecycle of a classroom poll.

A question is asked with a fixed answer window. While it is active it
accepts one answer per student and blocks new questions in its poll. It
becomes inactive exactly once, on whichever comes first:

  - a submission or read that finds the window over
  - the Sweeper's periodic pass
  - an explicit ExpireQuestion

Every state change is published: question-started when a question is asked,
tally-updated after each accepted answer and when a question closes.

Errors are *Error values carrying a Kind, which callers map to responses:

	switch lifecycle.KindOf(err) {
	case lifecycle.KindNotFound:
		...
	}
*/
package lifecycle
