package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"quizpin-service/internal/domain"
	"quizpin-service/internal/infra/memory"
)

func TestSubmissionGuardDedupes(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	guard := NewSubmissionGuard(newClient(mr), memory.NewSubmissionStore(), time.Minute)
	ctx := context.Background()

	sub := domain.ScoredSubmission{ID: "sub-1", QuizID: "quiz-1", SessionToken: "tok-1", Score: 2}
	if _, err := guard.AppendSubmission(ctx, sub); err != nil {
		t.Fatalf("append: %v", err)
	}
	if !mr.Exists("quiz:submission:tok-1") {
		t.Fatalf("expected idempotency marker in redis")
	}

	dup := sub
	dup.ID = "sub-2"
	stored, err := guard.AppendSubmission(ctx, dup)
	if err != domain.ErrDuplicateSubmission {
		t.Fatalf("expected ErrDuplicateSubmission, got %v", err)
	}
	if stored.ID != "sub-1" {
		t.Fatalf("expected original submission, got %s", stored.ID)
	}

	subs, err := guard.ListSubmissions(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("expected one persisted submission, got %d", len(subs))
	}
}

func TestSubmissionGuardPassesThroughWithoutToken(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	guard := NewSubmissionGuard(newClient(mr), memory.NewSubmissionStore(), time.Minute)
	ctx := context.Background()

	for i, id := range []string{"sub-a", "sub-b"} {
		if _, err := guard.AppendSubmission(ctx, domain.ScoredSubmission{ID: id, QuizID: "quiz-1"}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	subs, err := guard.ListSubmissions(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("tokenless submissions must not dedupe, got %d", len(subs))
	}
}
