// Package mongo backs the quiz platform with the document store the
// teacher-facing application writes to.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"quizpin-service/internal/domain"
)

type questionDoc struct {
	Text               string   `bson:"text"`
	Answers            []string `bson:"answers"`
	CorrectAnswerIndex int      `bson:"correctAnswerIndex"`
}

type quizDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Title        string             `bson:"title"`
	SchoolName   string             `bson:"schoolName"`
	TeacherName  string             `bson:"teacherName"`
	Major        string             `bson:"major"`
	PIN          string             `bson:"pin"`
	Language     string             `bson:"language"`
	Questions    []questionDoc      `bson:"questions"`
	HasTimeLimit bool               `bson:"hasTimeLimit"`
	TimeLimit    int                `bson:"timeLimit"`
}

// QuizLoader reads quiz definitions from the quizzes collection.
type QuizLoader struct {
	col *mongo.Collection
}

func NewQuizLoader(db *mongo.Database) *QuizLoader {
	return &QuizLoader{col: db.Collection("quizzes")}
}

func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	objID, err := primitive.ObjectIDFromHex(quizID)
	if err != nil {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return l.findOne(ctx, bson.M{"_id": objID}, domain.ErrQuizNotFound)
}

func (l *QuizLoader) LoadQuizByPIN(ctx context.Context, pin string) (domain.Quiz, error) {
	return l.findOne(ctx, bson.M{"pin": pin}, domain.ErrInvalidPIN)
}

func (l *QuizLoader) findOne(ctx context.Context, filter bson.M, notFound error) (domain.Quiz, error) {
	var doc quizDoc
	err := l.col.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Quiz{}, notFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	return doc.toDomain(), nil
}

func (d quizDoc) toDomain() domain.Quiz {
	questions := make([]domain.Question, len(d.Questions))
	for i, q := range d.Questions {
		questions[i] = domain.Question{
			Text:               q.Text,
			Answers:            q.Answers,
			CorrectAnswerIndex: q.CorrectAnswerIndex,
		}
	}
	return domain.Quiz{
		ID:               d.ID.Hex(),
		Title:            d.Title,
		SchoolName:       d.SchoolName,
		TeacherName:      d.TeacherName,
		Major:            d.Major,
		PIN:              d.PIN,
		Language:         d.Language,
		Questions:        questions,
		HasTimeLimit:     d.HasTimeLimit,
		TimeLimitMinutes: d.TimeLimit,
	}
}
