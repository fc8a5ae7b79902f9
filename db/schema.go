// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
// The same DDL runs on SQLite and PostgreSQL.
func CreateSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Timestamps are unix milliseconds so both dialects scan them the same way.
const schema = `
-- Teachers
CREATE TABLE IF NOT EXISTS teacher (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    created_at BIGINT NOT NULL
);

-- Students
CREATE TABLE IF NOT EXISTS student (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    created_at BIGINT NOT NULL
);

-- Polls
CREATE TABLE IF NOT EXISTS poll (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    created_by TEXT NOT NULL,
    created_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_poll_created_by ON poll(created_by);

-- Questions
CREATE TABLE IF NOT EXISTS question (
    id TEXT PRIMARY KEY,
    poll_id TEXT NOT NULL REFERENCES poll(id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    text TEXT NOT NULL,
    options_json TEXT NOT NULL,
    created_at BIGINT NOT NULL,
    expires_at BIGINT NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    UNIQUE (poll_id, seq)
);

-- At most one active question per poll
CREATE UNIQUE INDEX IF NOT EXISTS idx_question_one_active ON question(poll_id) WHERE is_active;
CREATE INDEX IF NOT EXISTS idx_question_expiry ON question(is_active, expires_at);

-- Answers
CREATE TABLE IF NOT EXISTS answer (
    id TEXT PRIMARY KEY,
    student_id TEXT NOT NULL,
    question_id TEXT NOT NULL REFERENCES question(id) ON DELETE CASCADE,
    answer TEXT NOT NULL,
    submitted_at BIGINT NOT NULL,
    UNIQUE (student_id, question_id)
);

CREATE INDEX IF NOT EXISTS idx_answer_question_id ON answer(question_id);
`
