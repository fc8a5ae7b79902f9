// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danielhkuo/classpoll/cliparse"
	"github.com/danielhkuo/classpoll/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("unique constraint violated")
	// ErrClosed means the question was inactive or past its window when the
	// answer was written.
	ErrClosed = errors.New("question closed")
)

// Store is the persistence boundary. Every write that guards an invariant is a
// single conditional operation so concurrent callers cannot interleave.
type Store interface {
	CreateTeacher(ctx context.Context, t *models.Teacher) error
	CreateStudent(ctx context.Context, s *models.Student) error
	StudentExists(ctx context.Context, id string) (bool, error)

	CreatePoll(ctx context.Context, p *models.Poll) error
	// GetPoll returns the poll with its question ids in creation order.
	GetPoll(ctx context.Context, id string) (*models.Poll, error)
	// ListPolls returns polls newest first; an empty createdBy lists all.
	ListPolls(ctx context.Context, createdBy string) ([]models.Poll, error)

	// InsertQuestion assigns q.Seq and appends q to its poll. Returns
	// ErrDuplicate when the poll already has an active question.
	InsertQuestion(ctx context.Context, q *models.Question) error
	GetQuestion(ctx context.Context, id string) (*models.Question, error)
	LatestQuestion(ctx context.Context, pollID string) (*models.Question, error)
	ActiveQuestion(ctx context.Context, pollID string) (*models.Question, error)
	ListQuestions(ctx context.Context, pollID string) ([]models.Question, error)
	// ExpireQuestion flips is_active from true to false. It reports true only
	// for the call that performed the flip.
	ExpireQuestion(ctx context.Context, id string) (bool, error)
	// OverdueQuestions lists active questions with expires_at <= now.
	OverdueQuestions(ctx context.Context, now time.Time) ([]models.Question, error)

	// InsertAnswer records a only while its question is active and
	// a.SubmittedAt is within the window, atomically with respect to
	// ExpireQuestion. Returns ErrDuplicate when the student already answered
	// and ErrClosed when the question is closed.
	InsertAnswer(ctx context.Context, a *models.Answer) error
	HasAnswered(ctx context.Context, studentID, questionID string) (bool, error)
	ListAnswers(ctx context.Context, questionID string) ([]models.Answer, error)

	Close() error
}

// Open connects to the database selected by cfg.DatabaseType and prepares
// its schema or indexes.
func Open(ctx context.Context, cfg cliparse.Config) (Store, error) {
	switch cfg.DatabaseType {
	case cliparse.DatabaseSQLite, cliparse.DatabasePostgres:
		return OpenSQL(ctx, cfg.DatabaseType, cfg.DatabaseURL)
	case cliparse.DatabaseMongo:
		return OpenMongo(ctx, cfg.DatabaseURL, cfg.MongoDatabase)
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.DatabaseType)
	}
}
