// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/danielhkuo/classpoll/cliparse"
	"github.com/danielhkuo/classpoll/db"
	"github.com/danielhkuo/classpoll/metrics"
	"github.com/danielhkuo/classpoll/models"
	"github.com/danielhkuo/classpoll/tally"
)

// Publisher receives every lifecycle event. broadcast.Hub implements it.
type Publisher interface {
	Publish(ev models.Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(models.Event) {}

// Manager owns the question lifecycle. It is safe for concurrent use; the
// invariants it guards are enforced by conditional writes in the store.
type Manager struct {
	store  db.Store
	pub    Publisher
	window time.Duration
	now    func() time.Time
}

func NewManager(store db.Store, pub Publisher, cfg cliparse.Config) *Manager {
	if pub == nil {
		pub = nopPublisher{}
	}
	window := cfg.QuestionWindow
	if window <= 0 {
		window = cliparse.DefaultQuestionWindow
	}
	return &Manager{
		store:  store,
		pub:    pub,
		window: window,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Window is the answer period given to new questions.
func (m *Manager) Window() time.Duration {
	return m.window
}

// clock returns the current time at the storage precision.
func (m *Manager) clock() time.Time {
	return m.now().Truncate(time.Millisecond)
}

func (m *Manager) RegisterTeacher(ctx context.Context, name string) (*models.Teacher, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}

	t := &models.Teacher{ID: uuid.NewString(), Name: name, CreatedAt: m.clock()}
	if err := m.store.CreateTeacher(ctx, t); err != nil {
		return nil, internal("failed to register teacher", err)
	}

	slog.Info("teacher registered", "teacher_id", t.ID)
	return t, nil
}

// RegisterStudent always creates a new identity; names are not unique.
func (m *Manager) RegisterStudent(ctx context.Context, name string) (*models.Student, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}

	s := &models.Student{ID: uuid.NewString(), Name: name, CreatedAt: m.clock()}
	if err := m.store.CreateStudent(ctx, s); err != nil {
		return nil, internal("failed to register student", err)
	}

	slog.Info("student registered", "student_id", s.ID)
	return s, nil
}

func (m *Manager) CreatePoll(ctx context.Context, title, createdBy string) (*models.Poll, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrTitleRequired
	}

	p := &models.Poll{
		ID:        uuid.NewString(),
		Title:     title,
		Questions: []string{},
		CreatedBy: strings.TrimSpace(createdBy),
		CreatedAt: m.clock(),
	}
	if err := m.store.CreatePoll(ctx, p); err != nil {
		return nil, internal("failed to create poll", err)
	}

	slog.Info("poll created", "poll_id", p.ID, "created_by", p.CreatedBy)
	return p, nil
}

// ListPolls returns polls newest first. An empty createdBy lists every poll.
func (m *Manager) ListPolls(ctx context.Context, createdBy string) ([]models.Poll, error) {
	polls, err := m.store.ListPolls(ctx, strings.TrimSpace(createdBy))
	if err != nil {
		return nil, internal("failed to list polls", err)
	}
	return polls, nil
}

// AskQuestion starts a new question on a poll. It fails with
// ErrPreviousQuestionActive while the poll's latest question is still
// flagged active, even if its window has passed.
func (m *Manager) AskQuestion(ctx context.Context, pollID, text string, options []string) (*models.Question, error) {
	text = strings.TrimSpace(text)
	if text == "" || len(options) < 2 || hasBlankOrRepeat(options) {
		return nil, ErrInvalidQuestion
	}

	if _, err := m.store.GetPoll(ctx, pollID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrPollNotFound
		}
		return nil, internal("failed to load poll", err)
	}

	latest, err := m.store.LatestQuestion(ctx, pollID)
	switch {
	case errors.Is(err, db.ErrNotFound):
	case err != nil:
		return nil, internal("failed to load latest question", err)
	case latest.IsActive:
		return nil, ErrPreviousQuestionActive
	}

	now := m.clock()
	q := &models.Question{
		ID:        uuid.NewString(),
		PollID:    pollID,
		Text:      text,
		Options:   slices.Clone(options),
		CreatedAt: now,
		ExpiresAt: now.Add(m.window),
		IsActive:  true,
	}
	if err := m.store.InsertQuestion(ctx, q); err != nil {
		// Lost a race against a concurrent ask
		if errors.Is(err, db.ErrDuplicate) {
			return nil, ErrPreviousQuestionActive
		}
		return nil, internal("failed to create question", err)
	}

	metrics.QuestionsAsked.Inc()
	slog.Info("question started",
		"poll_id", pollID,
		"question_id", q.ID,
		"options", len(q.Options),
		"window", m.window.String(),
		"expires", humanize.Time(q.ExpiresAt),
	)

	m.pub.Publish(models.Event{
		Name: models.EventQuestionStarted,
		Data: models.QuestionStarted{PollID: pollID, Question: *q},
	})
	return q, nil
}

func hasBlankOrRepeat(options []string) bool {
	seen := make(map[string]bool, len(options))
	for _, o := range options {
		if strings.TrimSpace(o) == "" || seen[o] {
			return true
		}
		seen[o] = true
	}
	return false
}

// SubmitAnswer records one student's answer to a question and broadcasts the
// new tally. Submitting after the window closes expires the question.
func (m *Manager) SubmitAnswer(ctx context.Context, questionID, studentID, value string) (*models.Answer, error) {
	if value == "" {
		metrics.AnswersSubmitted.WithLabelValues(metrics.OutcomeRejected).Inc()
		return nil, ErrAnswerRequired
	}

	q, err := m.store.GetQuestion(ctx, questionID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			metrics.AnswersSubmitted.WithLabelValues(metrics.OutcomeRejected).Inc()
			return nil, ErrQuestionNotFound
		}
		return nil, internal("failed to load question", err)
	}

	if !q.IsActive {
		metrics.AnswersSubmitted.WithLabelValues(metrics.OutcomeRejected).Inc()
		return nil, ErrQuestionNotActive
	}

	now := m.clock()
	if q.Expired(now) {
		metrics.AnswersSubmitted.WithLabelValues(metrics.OutcomeExpired).Inc()
		if _, _, err := m.expire(ctx, q, metrics.TriggerSubmit); err != nil {
			return nil, err
		}
		return nil, ErrTimeExpired
	}

	exists, err := m.store.StudentExists(ctx, studentID)
	if err != nil {
		return nil, internal("failed to load student", err)
	}
	if !exists {
		metrics.AnswersSubmitted.WithLabelValues(metrics.OutcomeRejected).Inc()
		return nil, ErrStudentNotFound
	}

	a := &models.Answer{
		ID:          uuid.NewString(),
		StudentID:   studentID,
		QuestionID:  q.ID,
		Value:       value,
		SubmittedAt: now,
	}
	if err := m.store.InsertAnswer(ctx, a); err != nil {
		switch {
		case errors.Is(err, db.ErrDuplicate):
			metrics.AnswersSubmitted.WithLabelValues(metrics.OutcomeDuplicate).Inc()
			return nil, ErrDuplicateAnswer
		case errors.Is(err, db.ErrClosed):
			// Closed after the check above; whoever closed it broadcasts
			metrics.AnswersSubmitted.WithLabelValues(metrics.OutcomeRejected).Inc()
			return nil, ErrQuestionNotActive
		}
		return nil, internal("failed to record answer", err)
	}
	metrics.AnswersSubmitted.WithLabelValues(metrics.OutcomeAccepted).Inc()

	if !slices.Contains(q.Options, value) {
		slog.Warn("answer outside declared options",
			"question_id", q.ID,
			"student_id", studentID,
			"answer", value,
		)
	}

	// The answer is stored; a failed broadcast must not turn it into an error.
	// Reload so a question closed since the check is never shown as active.
	current, err := m.store.GetQuestion(ctx, q.ID)
	if err != nil {
		slog.Error("failed to reload question", "question_id", q.ID, "error", err)
		return a, nil
	}
	if _, err := m.publishTally(ctx, *current); err != nil {
		slog.Error("failed to broadcast tally", "question_id", q.ID, "error", err)
	}
	return a, nil
}

// SubmitAnswerForPoll answers whatever question is active on the poll.
func (m *Manager) SubmitAnswerForPoll(ctx context.Context, pollID, studentID, value string) (*models.Answer, error) {
	q, err := m.store.ActiveQuestion(ctx, pollID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrNoActiveQuestion
		}
		return nil, internal("failed to load active question", err)
	}
	return m.SubmitAnswer(ctx, q.ID, studentID, value)
}

// GetResults returns the tally of a question. While a question is open, only
// students who already answered may see it.
func (m *Manager) GetResults(ctx context.Context, questionID, studentID string) (models.Tally, error) {
	q, err := m.store.GetQuestion(ctx, questionID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return models.Tally{}, ErrQuestionNotFound
		}
		return models.Tally{}, internal("failed to load question", err)
	}

	now := m.clock()
	if q.IsActive && q.Expired(now) {
		t, _, err := m.expire(ctx, q, metrics.TriggerAccess)
		return t, err
	}

	if q.IsActive {
		answered, err := m.store.HasAnswered(ctx, studentID, q.ID)
		if err != nil {
			return models.Tally{}, internal("failed to load answer", err)
		}
		if !answered && now.Before(q.ExpiresAt) {
			return models.Tally{}, ErrResultsNotYetAvailable
		}
	}

	return m.computeTally(ctx, *q)
}

// GetActiveQuestion returns the poll's open question, expiring it first if
// its window has passed.
func (m *Manager) GetActiveQuestion(ctx context.Context, pollID string) (*models.Question, error) {
	q, err := m.store.ActiveQuestion(ctx, pollID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrNoActiveQuestion
		}
		return nil, internal("failed to load active question", err)
	}

	if q.Expired(m.clock()) {
		if _, _, err := m.expire(ctx, q, metrics.TriggerAccess); err != nil {
			return nil, err
		}
		return nil, ErrNoActiveQuestion
	}
	return q, nil
}

// GetPollResults returns a tally for every question of a poll in the order
// the questions were asked.
func (m *Manager) GetPollResults(ctx context.Context, pollID string) (*models.Poll, []models.Tally, error) {
	poll, err := m.store.GetPoll(ctx, pollID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, nil, ErrPollNotFound
		}
		return nil, nil, internal("failed to load poll", err)
	}

	questions, err := m.store.ListQuestions(ctx, pollID)
	if err != nil {
		return nil, nil, internal("failed to load questions", err)
	}

	now := m.clock()
	results := make([]models.Tally, 0, len(questions))
	for i := range questions {
		q := &questions[i]
		var t models.Tally
		if q.IsActive && q.Expired(now) {
			t, _, err = m.expire(ctx, q, metrics.TriggerAccess)
		} else {
			t, err = m.computeTally(ctx, *q)
		}
		if err != nil {
			return nil, nil, err
		}
		results = append(results, t)
	}
	return poll, results, nil
}

// ExpireQuestion closes a question regardless of its window. It reports
// whether this call performed the transition; the final tally is broadcast
// either way.
func (m *Manager) ExpireQuestion(ctx context.Context, questionID string) (models.Tally, bool, error) {
	q, err := m.store.GetQuestion(ctx, questionID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return models.Tally{}, false, ErrQuestionNotFound
		}
		return models.Tally{}, false, internal("failed to load question", err)
	}
	return m.expire(ctx, q, metrics.TriggerManual)
}

// expire is the only path from active to expired. Every caller broadcasts;
// only the caller whose conditional update flipped the flag logs and counts.
func (m *Manager) expire(ctx context.Context, q *models.Question, trigger string) (models.Tally, bool, error) {
	flipped, err := m.store.ExpireQuestion(ctx, q.ID)
	if err != nil {
		return models.Tally{}, false, internal("failed to expire question", err)
	}

	if flipped {
		metrics.QuestionsExpired.WithLabelValues(trigger).Inc()
		slog.Info("question expired",
			"poll_id", q.PollID,
			"question_id", q.ID,
			"trigger", trigger,
			"expired", humanize.Time(q.ExpiresAt),
		)
	}

	closed := *q
	closed.IsActive = false
	t, err := m.publishTally(ctx, closed)
	if err != nil {
		return models.Tally{}, flipped, err
	}
	return t, flipped, nil
}

func (m *Manager) computeTally(ctx context.Context, q models.Question) (models.Tally, error) {
	answers, err := m.store.ListAnswers(ctx, q.ID)
	if err != nil {
		return models.Tally{}, internal("failed to load answers", err)
	}
	return tally.Compute(q, answers), nil
}

func (m *Manager) publishTally(ctx context.Context, q models.Question) (models.Tally, error) {
	t, err := m.computeTally(ctx, q)
	if err != nil {
		return models.Tally{}, err
	}
	m.pub.Publish(models.Event{Name: models.EventTallyUpdated, Data: t})
	return t, nil
}
