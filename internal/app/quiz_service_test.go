package app_test

import (
	"context"
	"testing"
	"time"

	"quizpin-service/internal/app"
	"quizpin-service/internal/domain"
	"quizpin-service/internal/infra/memory"
	"quizpin-service/internal/session"
)

func newTestService() (*app.QuizService, *memory.SubmissionStore) {
	quizzes := map[string]domain.Quiz{
		"quiz-1": {
			ID:          "quiz-1",
			Title:       "Sample",
			PIN:         "ABC123",
			SchoolName:  "School",
			TeacherName: "Teacher",
			Major:       "Math",
			Questions: []domain.Question{
				{Text: "q0", Answers: []string{"a", "b"}, CorrectAnswerIndex: 0},
				{Text: "q1", Answers: []string{"a", "b"}, CorrectAnswerIndex: 1},
				{Text: "q2", Answers: []string{"a", "b", "c"}, CorrectAnswerIndex: 2},
				{Text: "q3", Answers: []string{"a", "b", "c", "d"}, CorrectAnswerIndex: 3},
			},
		},
		"quiz-empty": {
			ID:  "quiz-empty",
			PIN: "EMPTY1",
		},
	}
	repo := memory.NewQuizRepository(memory.NewStaticQuizLoader(quizzes), 5*time.Minute)
	store := memory.NewSubmissionStore()
	return app.NewQuizService(repo, store), store
}

func TestSubmitScoresAgainstAnswerKeys(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	// correct, correct, wrong (out of range), unanswered
	result, err := service.Submit(ctx, session.SubmitRequest{
		QuizID:       "quiz-1",
		SessionToken: "tok-1",
		UserName:     "Alice",
		Answers:      []int{0, 1, 9, -1},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if result.Score != 2 {
		t.Fatalf("expected score 2, got %d", result.Score)
	}
	if result.Percentage != 50 {
		t.Fatalf("expected 50%%, got %d", result.Percentage)
	}
	if result.TotalQuestions != 4 {
		t.Fatalf("expected 4 questions, got %d", result.TotalQuestions)
	}
	if result.Results[2].IsCorrect {
		t.Fatalf("out-of-range answer scored correct")
	}
	if result.Results[3].UserAnswerText != domain.NoAnswerText {
		t.Fatalf("expected %q for unanswered, got %q", domain.NoAnswerText, result.Results[3].UserAnswerText)
	}
	if result.Results[3].IsCorrect {
		t.Fatalf("unanswered question scored correct")
	}
	if result.Results[1].CorrectAnswerText != "b" {
		t.Fatalf("expected correct answer text b, got %q", result.Results[1].CorrectAnswerText)
	}
}

func TestSubmitZeroQuestions(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	result, err := service.Submit(ctx, session.SubmitRequest{
		QuizID:       "quiz-empty",
		SessionToken: "tok-2",
		UserName:     "Alice",
		Answers:      []int{},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Percentage != 0 || result.Score != 0 || result.TotalQuestions != 0 {
		t.Fatalf("expected trivial zero result, got %+v", result)
	}
}

func TestSubmitUnknownQuiz(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	_, err := service.Submit(ctx, session.SubmitRequest{
		QuizID:   "quiz-missing",
		UserName: "Alice",
		Answers:  []int{0},
	})
	if err != domain.ErrQuizNotFound {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}

func TestSubmitRequiresNameAndAnswers(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	if _, err := service.Submit(ctx, session.SubmitRequest{QuizID: "quiz-1", UserName: " ", Answers: []int{0}}); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for empty name, got %v", err)
	}
	if _, err := service.Submit(ctx, session.SubmitRequest{QuizID: "quiz-1", UserName: "Alice"}); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for nil answers, got %v", err)
	}
}

func TestSubmitDedupesOnSessionToken(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService()

	req := session.SubmitRequest{
		QuizID:       "quiz-1",
		SessionToken: "tok-dup",
		UserName:     "Alice",
		Answers:      []int{0, 1, 2, 3},
	}
	first, err := service.Submit(ctx, req)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	second, err := service.Submit(ctx, req)
	if err != nil {
		t.Fatalf("retried submit: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("retry produced a new record: %s vs %s", first.ID, second.ID)
	}

	subs, err := store.ListSubmissions(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("expected 1 persisted submission, got %d", len(subs))
	}
}

func TestJoinByPIN(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	quiz, err := service.JoinByPIN(ctx, "abc123", "Alice")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if quiz.ID != "quiz-1" {
		t.Fatalf("expected quiz-1, got %s", quiz.ID)
	}
	for _, q := range quiz.Questions {
		if len(q.Answers) == 0 {
			t.Fatalf("student quiz missing answers")
		}
	}

	if _, err := service.JoinByPIN(ctx, "NOPE99", "Alice"); err != domain.ErrInvalidPIN {
		t.Fatalf("expected ErrInvalidPIN, got %v", err)
	}
	if _, err := service.JoinByPIN(ctx, "", "Alice"); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := service.JoinByPIN(ctx, "ABC123", ""); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStudentProjectionHidesAnswerKeys(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	quiz, err := service.GetQuizForStudent(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if len(quiz.Questions) != 4 {
		t.Fatalf("expected 4 questions, got %d", len(quiz.Questions))
	}
	// StudentQuestion has no key field; verify the projection carries
	// the text and options through in canonical order.
	if quiz.Questions[2].Text != "q2" || len(quiz.Questions[2].Answers) != 3 {
		t.Fatalf("projection mangled question: %+v", quiz.Questions[2])
	}
}
