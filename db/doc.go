// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db persists teachers, students, polls, questions and answers.

# Backends

Store has two implementations, chosen by Open from the configured
database type:

  - SQLStore: SQLite (modernc.org/sqlite, the default) or PostgreSQL (lib/pq)
  - MongoStore: MongoDB (mongo-driver v2)

	store, err := db.Open(ctx, cfg)

# Schema Creation

CreateSchema initializes all SQL tables. Safe to call multiple times - uses
IF NOT EXISTS for all tables and indexes. MongoStore.InitializeIndexes does
the same for MongoDB.

# Tables

  - teacher, student: anonymous identities
  - poll: title and owner
  - question: options (JSON), window, is_active, seq within its poll
  - answer: one row per (student, question)

# Relationships

	poll 1──* question
	question 1──* answer

Timestamps are stored as unix milliseconds.

# Invariants

Both backends enforce the rules that must survive concurrent requests with
unique indexes rather than read-then-write checks:

  - question(poll_id) WHERE is_active: one active question per poll
  - question(poll_id, seq): questions keep their creation order
  - answer(student_id, question_id): one answer per student

A violated index surfaces as ErrDuplicate. ExpireQuestion is a conditional
update that reports whether this call performed the flip.

InsertAnswer only writes while the question is active and the answer falls
inside its window, otherwise it returns ErrClosed. SQL does this in one
INSERT ... SELECT (FOR SHARE on PostgreSQL); MongoDB bumps answer_count on
the open question and inserts the answer in one transaction, so it needs a
replica set. A single-node replica set is enough.

A poll's question ids are read from the question collection in seq order
rather than stored on the poll.
*/
package db
