// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/danielhkuo/classpoll/cliparse"
	"github.com/danielhkuo/classpoll/models"
)

// SQLStore implements Store on SQLite or PostgreSQL through database/sql.
type SQLStore struct {
	db *sql.DB
	// lockOpen is appended to reads that gate writes on an open question.
	// PostgreSQL needs a row lock so ExpireQuestion waits for the write;
	// SQLite serializes writers on its own.
	lockOpen string
}

// OpenSQL opens a database/sql connection for dialect ("sqlite" or
// "postgres"), verifies it and creates the schema.
func OpenSQL(ctx context.Context, dialect, dsn string) (*SQLStore, error) {
	driver := dialect
	if dialect == cliparse.DatabaseSQLite {
		driver = "sqlite"
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// SQLite allows a single writer; one connection avoids SQLITE_BUSY.
	if dialect == cliparse.DatabaseSQLite {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	if err := CreateSchema(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}

	return NewSQLStore(conn, dialect), nil
}

// NewSQLStore wraps an existing connection whose schema is already in place.
func NewSQLStore(conn *sql.DB, dialect string) *SQLStore {
	s := &SQLStore{db: conn}
	if dialect == cliparse.DatabasePostgres {
		s.lockOpen = " FOR SHARE"
	}
	return s
}

// DB exposes the underlying connection.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) CreateTeacher(ctx context.Context, t *models.Teacher) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO teacher (id, name, created_at)
		VALUES ($1, $2, $3)
	`, t.ID, t.Name, toMillis(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert teacher: %w", err)
	}
	return nil
}

func (s *SQLStore) CreateStudent(ctx context.Context, st *models.Student) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO student (id, name, created_at)
		VALUES ($1, $2, $3)
	`, st.ID, st.Name, toMillis(st.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert student: %w", err)
	}
	return nil
}

func (s *SQLStore) StudentExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM student WHERE id = $1)
	`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query student: %w", err)
	}
	return exists, nil
}

func (s *SQLStore) CreatePoll(ctx context.Context, p *models.Poll) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO poll (id, title, created_by, created_at)
		VALUES ($1, $2, $3, $4)
	`, p.ID, p.Title, p.CreatedBy, toMillis(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert poll: %w", err)
	}
	return nil
}

func (s *SQLStore) GetPoll(ctx context.Context, id string) (*models.Poll, error) {
	var p models.Poll
	var createdAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, created_by, created_at FROM poll WHERE id = $1
	`, id).Scan(&p.ID, &p.Title, &p.CreatedBy, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query poll: %w", err)
	}
	p.CreatedAt = fromMillis(createdAt)

	p.Questions, err = s.questionIDs(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLStore) ListPolls(ctx context.Context, createdBy string) ([]models.Poll, error) {
	query := `SELECT id, title, created_by, created_at FROM poll`
	var args []any
	if createdBy != "" {
		query += ` WHERE created_by = $1`
		args = append(args, createdBy)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query polls: %w", err)
	}

	polls := []models.Poll{}
	for rows.Next() {
		var p models.Poll
		var createdAt int64
		if err := rows.Scan(&p.ID, &p.Title, &p.CreatedBy, &createdAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan poll: %w", err)
		}
		p.CreatedAt = fromMillis(createdAt)
		polls = append(polls, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate polls: %w", err)
	}
	rows.Close()

	// Rows must be closed first: SQLite runs on a single connection.
	for i := range polls {
		polls[i].Questions, err = s.questionIDs(ctx, polls[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return polls, nil
}

func (s *SQLStore) questionIDs(ctx context.Context, pollID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM question WHERE poll_id = $1 ORDER BY seq
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to query question ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan question id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLStore) InsertQuestion(ctx context.Context, q *models.Question) error {
	optionsJSON, err := json.Marshal(q.Options)
	if err != nil {
		return fmt.Errorf("failed to encode options: %w", err)
	}

	var seq int
	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) + 1 FROM question WHERE poll_id = $1
	`, q.PollID).Scan(&seq)
	if err != nil {
		return fmt.Errorf("failed to compute question sequence: %w", err)
	}
	q.Seq = seq

	// A concurrent ask loses on idx_question_one_active or (poll_id, seq)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO question (id, poll_id, seq, text, options_json, created_at, expires_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT DO NOTHING
	`, q.ID, q.PollID, q.Seq, q.Text, string(optionsJSON),
		toMillis(q.CreatedAt), toMillis(q.ExpiresAt), q.IsActive)
	if err != nil {
		return fmt.Errorf("failed to insert question: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrDuplicate
	}
	return nil
}

const questionColumns = `id, poll_id, seq, text, options_json, created_at, expires_at, is_active`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(row rowScanner) (*models.Question, error) {
	var q models.Question
	var optionsJSON string
	var createdAt, expiresAt int64
	err := row.Scan(&q.ID, &q.PollID, &q.Seq, &q.Text, &optionsJSON, &createdAt, &expiresAt, &q.IsActive)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(optionsJSON), &q.Options); err != nil {
		return nil, fmt.Errorf("failed to decode options: %w", err)
	}
	q.CreatedAt = fromMillis(createdAt)
	q.ExpiresAt = fromMillis(expiresAt)
	return &q, nil
}

func (s *SQLStore) queryOneQuestion(ctx context.Context, query string, args ...any) (*models.Question, error) {
	q, err := scanQuestion(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query question: %w", err)
	}
	return q, nil
}

func (s *SQLStore) queryQuestions(ctx context.Context, query string, args ...any) ([]models.Question, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}
	defer rows.Close()

	questions := []models.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, *q)
	}
	return questions, rows.Err()
}

func (s *SQLStore) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	return s.queryOneQuestion(ctx, `SELECT `+questionColumns+` FROM question WHERE id = $1`, id)
}

func (s *SQLStore) LatestQuestion(ctx context.Context, pollID string) (*models.Question, error) {
	return s.queryOneQuestion(ctx, `
		SELECT `+questionColumns+` FROM question
		WHERE poll_id = $1
		ORDER BY seq DESC
		LIMIT 1
	`, pollID)
}

func (s *SQLStore) ActiveQuestion(ctx context.Context, pollID string) (*models.Question, error) {
	return s.queryOneQuestion(ctx, `
		SELECT `+questionColumns+` FROM question
		WHERE poll_id = $1 AND is_active
	`, pollID)
}

func (s *SQLStore) ListQuestions(ctx context.Context, pollID string) ([]models.Question, error) {
	return s.queryQuestions(ctx, `
		SELECT `+questionColumns+` FROM question
		WHERE poll_id = $1
		ORDER BY seq
	`, pollID)
}

func (s *SQLStore) OverdueQuestions(ctx context.Context, now time.Time) ([]models.Question, error) {
	return s.queryQuestions(ctx, `
		SELECT `+questionColumns+` FROM question
		WHERE is_active AND expires_at <= $1
		ORDER BY expires_at
	`, toMillis(now))
}

func (s *SQLStore) ExpireQuestion(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE question SET is_active = FALSE
		WHERE id = $1 AND is_active
	`, id)
	if err != nil {
		return false, fmt.Errorf("failed to expire question: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *SQLStore) InsertAnswer(ctx context.Context, a *models.Answer) error {
	// The row is only produced while the question is open
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO answer (id, student_id, question_id, answer, submitted_at)
		SELECT $1, $2, q.id, $4, $5
		FROM question q
		WHERE q.id = $3 AND q.is_active AND q.expires_at >= $5`+s.lockOpen+`
		ON CONFLICT DO NOTHING
	`, a.ID, a.StudentID, a.QuestionID, a.Value, toMillis(a.SubmittedAt))
	if err != nil {
		return fmt.Errorf("failed to insert answer: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	answered, err := s.HasAnswered(ctx, a.StudentID, a.QuestionID)
	if err != nil {
		return err
	}
	if answered {
		return ErrDuplicate
	}
	return ErrClosed
}

func (s *SQLStore) HasAnswered(ctx context.Context, studentID, questionID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM answer
			WHERE student_id = $1 AND question_id = $2
		)
	`, studentID, questionID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query answer: %w", err)
	}
	return exists, nil
}

func (s *SQLStore) ListAnswers(ctx context.Context, questionID string) ([]models.Answer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, student_id, question_id, answer, submitted_at
		FROM answer
		WHERE question_id = $1
		ORDER BY submitted_at, id
	`, questionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query answers: %w", err)
	}
	defer rows.Close()

	answers := []models.Answer{}
	for rows.Next() {
		var a models.Answer
		var submittedAt int64
		if err := rows.Scan(&a.ID, &a.StudentID, &a.QuestionID, &a.Value, &submittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan answer: %w", err)
		}
		a.SubmittedAt = fromMillis(submittedAt)
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
