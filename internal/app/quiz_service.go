package app

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"quizpin-service/internal/domain"
	"quizpin-service/internal/session"
)

// QuizRepository loads quiz content (from cache/backing store). The
// student projection never carries answer keys.
type QuizRepository interface {
	GetQuizForStudent(ctx context.Context, quizID string) (domain.StudentQuiz, error)
	GetQuizByPIN(ctx context.Context, pin string) (domain.StudentQuiz, error)
	GetQuizWithAnswerKeys(ctx context.Context, quizID string) (domain.Quiz, error)
}

// SubmissionRepository persists scored submissions. Appends are
// idempotent on the session token: a second append with the same token
// returns the stored record with domain.ErrDuplicateSubmission.
type SubmissionRepository interface {
	AppendSubmission(ctx context.Context, sub domain.ScoredSubmission) (domain.ScoredSubmission, error)
	GetBySessionToken(ctx context.Context, token string) (domain.ScoredSubmission, error)
	ListSubmissions(ctx context.Context, quizID string) ([]domain.ScoredSubmission, error)
}

// QuizService contains the quiz-taking use cases: joining a quiz and
// scoring a finished attempt. Scoring is authoritative here; the
// client-side engine never sees the answer keys.
type QuizService struct {
	quizzes     QuizRepository
	submissions SubmissionRepository
	now         func() time.Time
}

func NewQuizService(quizzes QuizRepository, submissions SubmissionRepository) *QuizService {
	return &QuizService{quizzes: quizzes, submissions: submissions, now: time.Now}
}

// NewQuizServiceWithClock is test-only for deterministic timestamps.
func NewQuizServiceWithClock(quizzes QuizRepository, submissions SubmissionRepository, now func() time.Time) *QuizService {
	return &QuizService{quizzes: quizzes, submissions: submissions, now: now}
}

// JoinByPIN resolves a join code to the student projection of a quiz.
// PINs are matched case-insensitively, as teachers hand them out on
// paper.
func (s *QuizService) JoinByPIN(ctx context.Context, pin, userName string) (domain.StudentQuiz, error) {
	if strings.TrimSpace(pin) == "" || strings.TrimSpace(userName) == "" {
		return domain.StudentQuiz{}, domain.Validation("PIN and user name are required")
	}
	return s.quizzes.GetQuizByPIN(ctx, strings.ToUpper(strings.TrimSpace(pin)))
}

// GetQuizForStudent returns the answer-key-free quiz by id (the direct
// link flow).
func (s *QuizService) GetQuizForStudent(ctx context.Context, quizID string) (domain.StudentQuiz, error) {
	return s.quizzes.GetQuizForStudent(ctx, quizID)
}

// ListSubmissions returns all scored submissions for a quiz.
func (s *QuizService) ListSubmissions(ctx context.Context, quizID string) ([]domain.ScoredSubmission, error) {
	return s.submissions.ListSubmissions(ctx, quizID)
}

// Submit scores a finalized attempt against the real answer keys and
// persists exactly one submission per session token. A retried submit
// (same token) returns the previously stored record. Implements
// session.Submitter.
func (s *QuizService) Submit(ctx context.Context, req session.SubmitRequest) (domain.ScoredSubmission, error) {
	if req.Answers == nil || strings.TrimSpace(req.UserName) == "" {
		return domain.ScoredSubmission{}, domain.Validation("answers and user name are required")
	}

	quiz, err := s.quizzes.GetQuizWithAnswerKeys(ctx, req.QuizID)
	if err != nil {
		return domain.ScoredSubmission{}, err
	}

	score, results := Score(quiz, req.Answers)
	total := len(quiz.Questions)
	percentage := 0
	if total > 0 {
		percentage = int(math.Round(100 * float64(score) / float64(total)))
	}

	sub := domain.ScoredSubmission{
		ID:               uuid.NewString(),
		QuizID:           quiz.ID,
		SessionToken:     req.SessionToken,
		UserName:         strings.TrimSpace(req.UserName),
		Answers:          req.Answers,
		Score:            score,
		TotalQuestions:   total,
		Percentage:       percentage,
		Results:          results,
		TimeSpentSeconds: req.TimeSpentSeconds,
		WasAutoSubmitted: req.WasAutoSubmitted,
		SubmittedAt:      s.now(),
	}

	stored, err := s.submissions.AppendSubmission(ctx, sub)
	if errors.Is(err, domain.ErrDuplicateSubmission) {
		return stored, nil
	}
	if err != nil {
		return domain.ScoredSubmission{}, err
	}
	return stored, nil
}

// Score compares answers (indexed by canonical question order) against
// the quiz answer keys. The unanswered sentinel never equals a valid
// index, so skipped questions count as incorrect. Answers beyond the
// question count are ignored; missing entries are treated as skipped.
func Score(quiz domain.Quiz, answers []int) (int, []domain.QuestionResult) {
	score := 0
	results := make([]domain.QuestionResult, len(quiz.Questions))
	for i, question := range quiz.Questions {
		userAnswer := domain.Unanswered
		if i < len(answers) {
			userAnswer = answers[i]
		}

		userText := domain.NoAnswerText
		if userAnswer >= 0 && userAnswer < len(question.Answers) {
			userText = question.Answers[userAnswer]
		}

		isCorrect := userAnswer == question.CorrectAnswerIndex
		if isCorrect {
			score++
		}

		results[i] = domain.QuestionResult{
			QuestionIndex:      i,
			QuestionText:       question.Text,
			UserAnswerIndex:    userAnswer,
			UserAnswerText:     userText,
			CorrectAnswerIndex: question.CorrectAnswerIndex,
			CorrectAnswerText:  question.Answers[question.CorrectAnswerIndex],
			IsCorrect:          isCorrect,
		}
	}
	return score, results
}
