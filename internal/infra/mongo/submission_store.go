package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"quizpin-service/internal/domain"
)

type submissionDoc struct {
	ID               string                  `bson:"_id"`
	QuizID           string                  `bson:"quizId"`
	SessionToken     string                  `bson:"sessionToken,omitempty"`
	UserName         string                  `bson:"userName"`
	Answers          []int                   `bson:"answers"`
	Score            int                     `bson:"score"`
	TotalQuestions   int                     `bson:"totalQuestions"`
	Percentage       int                     `bson:"percentage"`
	Results          []domain.QuestionResult `bson:"results"`
	TimeSpentSeconds int                     `bson:"timeSpent"`
	WasAutoSubmitted bool                    `bson:"wasAutoSubmitted"`
	SubmittedAt      time.Time               `bson:"submittedAt"`
}

// SubmissionStore persists scored submissions in the submissions
// collection. A unique sparse index on sessionToken makes retried
// appends idempotent.
type SubmissionStore struct {
	col *mongo.Collection
}

func NewSubmissionStore(db *mongo.Database) *SubmissionStore {
	return &SubmissionStore{col: db.Collection("submissions")}
}

// EnsureIndexes creates the dedupe and listing indexes. Call once at
// startup.
func (s *SubmissionStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "sessionToken", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{
			Keys: bson.D{{Key: "quizId", Value: 1}, {Key: "submittedAt", Value: 1}},
		},
	})
	return err
}

func (s *SubmissionStore) AppendSubmission(ctx context.Context, sub domain.ScoredSubmission) (domain.ScoredSubmission, error) {
	_, err := s.col.InsertOne(ctx, fromDomain(sub))
	if mongo.IsDuplicateKeyError(err) {
		existing, lookupErr := s.GetBySessionToken(ctx, sub.SessionToken)
		if lookupErr != nil {
			return domain.ScoredSubmission{}, lookupErr
		}
		return existing, domain.ErrDuplicateSubmission
	}
	if err != nil {
		return domain.ScoredSubmission{}, fmt.Errorf("append submission: %w", err)
	}
	return sub, nil
}

func (s *SubmissionStore) GetBySessionToken(ctx context.Context, token string) (domain.ScoredSubmission, error) {
	var doc submissionDoc
	err := s.col.FindOne(ctx, bson.M{"sessionToken": token}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.ScoredSubmission{}, domain.ErrSubmissionNotFound
	}
	if err != nil {
		return domain.ScoredSubmission{}, fmt.Errorf("get submission: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *SubmissionStore) ListSubmissions(ctx context.Context, quizID string) ([]domain.ScoredSubmission, error) {
	cur, err := s.col.Find(ctx, bson.M{"quizId": quizID}, options.Find().SetSort(bson.D{{Key: "submittedAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer cur.Close(ctx)

	var subs []domain.ScoredSubmission
	for cur.Next(ctx) {
		var doc submissionDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode submission: %w", err)
		}
		subs = append(subs, doc.toDomain())
	}
	return subs, cur.Err()
}

func fromDomain(sub domain.ScoredSubmission) submissionDoc {
	return submissionDoc{
		ID:               sub.ID,
		QuizID:           sub.QuizID,
		SessionToken:     sub.SessionToken,
		UserName:         sub.UserName,
		Answers:          sub.Answers,
		Score:            sub.Score,
		TotalQuestions:   sub.TotalQuestions,
		Percentage:       sub.Percentage,
		Results:          sub.Results,
		TimeSpentSeconds: sub.TimeSpentSeconds,
		WasAutoSubmitted: sub.WasAutoSubmitted,
		SubmittedAt:      sub.SubmittedAt,
	}
}

func (d submissionDoc) toDomain() domain.ScoredSubmission {
	return domain.ScoredSubmission{
		ID:               d.ID,
		QuizID:           d.QuizID,
		SessionToken:     d.SessionToken,
		UserName:         d.UserName,
		Answers:          d.Answers,
		Score:            d.Score,
		TotalQuestions:   d.TotalQuestions,
		Percentage:       d.Percentage,
		Results:          d.Results,
		TimeSpentSeconds: d.TimeSpentSeconds,
		WasAutoSubmitted: d.WasAutoSubmitted,
		SubmittedAt:      d.SubmittedAt,
	}
}
