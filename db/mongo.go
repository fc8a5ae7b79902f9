// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/danielhkuo/classpoll/models"
)

// Collection names
const (
	teachersCollection  = "teachers"
	studentsCollection  = "students"
	pollsCollection     = "polls"
	questionsCollection = "questions"
	answersCollection   = "answers"
)

// MongoStore implements Store on MongoDB. A poll's question ids are read from
// the questions collection, never stored on the poll.
type MongoStore struct {
	client    *mongo.Client
	teachers  *mongo.Collection
	students  *mongo.Collection
	polls     *mongo.Collection
	questions *mongo.Collection
	answers   *mongo.Collection
}

// OpenMongo connects, pings and creates the indexes that back the store's
// invariants.
func OpenMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connection failed: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping failed: %w", err)
	}

	s := NewMongoStore(client, database)
	if err := s.InitializeIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	slog.Info("mongo store ready", "database", database)
	return s, nil
}

func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	d := client.Database(database)
	return &MongoStore{
		client:    client,
		teachers:  d.Collection(teachersCollection),
		students:  d.Collection(studentsCollection),
		polls:     d.Collection(pollsCollection),
		questions: d.Collection(questionsCollection),
		answers:   d.Collection(answersCollection),
	}
}

// InitializeIndexes creates the indexes; safe to call repeatedly.
func (s *MongoStore) InitializeIndexes(ctx context.Context) error {
	questionIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "poll_id", Value: 1}, {Key: "seq", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			// At most one active question per poll
			Keys: bson.D{{Key: "poll_id", Value: 1}},
			Options: options.Index().
				SetName("one_active_per_poll").
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "is_active", Value: true}}),
		},
		{
			Keys: bson.D{{Key: "is_active", Value: 1}, {Key: "expires_at", Value: 1}},
		},
	}
	if _, err := s.questions.Indexes().CreateMany(ctx, questionIndexes); err != nil {
		return fmt.Errorf("failed to create question indexes: %w", err)
	}

	answerIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "student_id", Value: 1}, {Key: "question_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "question_id", Value: 1}},
		},
	}
	if _, err := s.answers.Indexes().CreateMany(ctx, answerIndexes); err != nil {
		return fmt.Errorf("failed to create answer indexes: %w", err)
	}

	pollIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "created_by", Value: 1}, {Key: "created_at", Value: -1}},
		},
	}
	if _, err := s.polls.Indexes().CreateMany(ctx, pollIndexes); err != nil {
		return fmt.Errorf("failed to create poll indexes: %w", err)
	}

	return nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) CreateTeacher(ctx context.Context, t *models.Teacher) error {
	if _, err := s.teachers.InsertOne(ctx, t); err != nil {
		return fmt.Errorf("failed to insert teacher: %w", err)
	}
	return nil
}

func (s *MongoStore) CreateStudent(ctx context.Context, st *models.Student) error {
	if _, err := s.students.InsertOne(ctx, st); err != nil {
		return fmt.Errorf("failed to insert student: %w", err)
	}
	return nil
}

func (s *MongoStore) StudentExists(ctx context.Context, id string) (bool, error) {
	n, err := s.students.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to query student: %w", err)
	}
	return n > 0, nil
}

func (s *MongoStore) CreatePoll(ctx context.Context, p *models.Poll) error {
	if p.Questions == nil {
		p.Questions = []string{}
	}
	// Questions is not stored; reads derive it from the questions collection
	if _, err := s.polls.InsertOne(ctx, p); err != nil {
		return fmt.Errorf("failed to insert poll: %w", err)
	}
	return nil
}

func (s *MongoStore) GetPoll(ctx context.Context, id string) (*models.Poll, error) {
	var p models.Poll
	err := s.polls.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query poll: %w", err)
	}
	if p.Questions, err = s.questionIDs(ctx, p.ID); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *MongoStore) ListPolls(ctx context.Context, createdBy string) ([]models.Poll, error) {
	filter := bson.M{}
	if createdBy != "" {
		filter["created_by"] = createdBy
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	cur, err := s.polls.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query polls: %w", err)
	}

	polls := []models.Poll{}
	if err := cur.All(ctx, &polls); err != nil {
		return nil, fmt.Errorf("failed to decode polls: %w", err)
	}
	for i := range polls {
		if polls[i].Questions, err = s.questionIDs(ctx, polls[i].ID); err != nil {
			return nil, err
		}
	}
	return polls, nil
}

func (s *MongoStore) InsertQuestion(ctx context.Context, q *models.Question) error {
	latest, err := s.LatestQuestion(ctx, q.PollID)
	switch {
	case errors.Is(err, ErrNotFound):
		q.Seq = 1
	case err != nil:
		return err
	default:
		q.Seq = latest.Seq + 1
	}

	if _, err := s.questions.InsertOne(ctx, q); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert question: %w", err)
	}

	return nil
}

// questionIDs lists a poll's question ids in creation order.
func (s *MongoStore) questionIDs(ctx context.Context, pollID string) ([]string, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "seq", Value: 1}}).
		SetProjection(bson.M{"_id": 1})
	cur, err := s.questions.Find(ctx, bson.M{"poll_id": pollID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query question ids: %w", err)
	}

	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode question ids: %w", err)
	}

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func (s *MongoStore) findOneQuestion(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) (*models.Question, error) {
	var q models.Question
	err := s.questions.FindOne(ctx, filter, opts...).Decode(&q)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query question: %w", err)
	}
	return &q, nil
}

func (s *MongoStore) findQuestions(ctx context.Context, filter any, sort bson.D) ([]models.Question, error) {
	cur, err := s.questions.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}

	questions := []models.Question{}
	if err := cur.All(ctx, &questions); err != nil {
		return nil, fmt.Errorf("failed to decode questions: %w", err)
	}
	return questions, nil
}

func (s *MongoStore) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	return s.findOneQuestion(ctx, bson.M{"_id": id})
}

func (s *MongoStore) LatestQuestion(ctx context.Context, pollID string) (*models.Question, error) {
	return s.findOneQuestion(ctx,
		bson.M{"poll_id": pollID},
		options.FindOne().SetSort(bson.D{{Key: "seq", Value: -1}}),
	)
}

func (s *MongoStore) ActiveQuestion(ctx context.Context, pollID string) (*models.Question, error) {
	return s.findOneQuestion(ctx, bson.M{"poll_id": pollID, "is_active": true})
}

func (s *MongoStore) ListQuestions(ctx context.Context, pollID string) ([]models.Question, error) {
	return s.findQuestions(ctx, bson.M{"poll_id": pollID}, bson.D{{Key: "seq", Value: 1}})
}

func (s *MongoStore) OverdueQuestions(ctx context.Context, now time.Time) ([]models.Question, error) {
	filter := bson.M{
		"is_active":  true,
		"expires_at": bson.M{"$lte": now},
	}
	return s.findQuestions(ctx, filter, bson.D{{Key: "expires_at", Value: 1}})
}

func (s *MongoStore) ExpireQuestion(ctx context.Context, id string) (bool, error) {
	res, err := s.questions.UpdateOne(ctx,
		bson.M{"_id": id, "is_active": true},
		bson.M{"$set": bson.M{"is_active": false}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to expire question: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

// InsertAnswer runs in a transaction that first writes to the question
// document, so a concurrent ExpireQuestion either commits before (and the
// answer is refused) or waits for the answer to commit. Transactions need a
// replica set; a single-node replica set is enough.
func (s *MongoStore) InsertAnswer(ctx context.Context, a *models.Answer) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		res, err := s.questions.UpdateOne(ctx,
			bson.M{
				"_id":        a.QuestionID,
				"is_active":  true,
				"expires_at": bson.M{"$gte": a.SubmittedAt},
			},
			bson.M{"$inc": bson.M{"answer_count": 1}},
		)
		if err != nil {
			return nil, err
		}
		if res.MatchedCount == 0 {
			return nil, ErrClosed
		}

		if _, err := s.answers.InsertOne(ctx, a); err != nil {
			return nil, err
		}
		return nil, nil
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrClosed):
		answered, err := s.HasAnswered(ctx, a.StudentID, a.QuestionID)
		if err != nil {
			return err
		}
		if answered {
			return ErrDuplicate
		}
		return ErrClosed
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	default:
		return fmt.Errorf("failed to insert answer: %w", err)
	}
}

func (s *MongoStore) HasAnswered(ctx context.Context, studentID, questionID string) (bool, error) {
	n, err := s.answers.CountDocuments(ctx,
		bson.M{"student_id": studentID, "question_id": questionID},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, fmt.Errorf("failed to query answer: %w", err)
	}
	return n > 0, nil
}

func (s *MongoStore) ListAnswers(ctx context.Context, questionID string) ([]models.Answer, error) {
	opts := options.Find().SetSort(bson.D{{Key: "submitted_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.answers.Find(ctx, bson.M{"question_id": questionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query answers: %w", err)
	}

	answers := []models.Answer{}
	if err := cur.All(ctx, &answers); err != nil {
		return nil, fmt.Errorf("failed to decode answers: %w", err)
	}
	return answers, nil
}
