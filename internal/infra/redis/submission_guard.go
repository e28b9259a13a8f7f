package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"quizpin-service/internal/app"
	"quizpin-service/internal/domain"
)

// SubmissionGuard wraps a SubmissionRepository with a Redis-backed
// idempotency check so retried submits dedupe across instances:
//
//	SET quiz:submission:{sessionToken} {submissionID} NX
//
// The wrapped store still enforces uniqueness itself; the guard is the
// shared fast path.
type SubmissionGuard struct {
	client *redis.Client
	next   app.SubmissionRepository
	ttl    time.Duration
}

func NewSubmissionGuard(client *redis.Client, next app.SubmissionRepository, ttl time.Duration) *SubmissionGuard {
	return &SubmissionGuard{client: client, next: next, ttl: ttl}
}

func (g *SubmissionGuard) AppendSubmission(ctx context.Context, sub domain.ScoredSubmission) (domain.ScoredSubmission, error) {
	if sub.SessionToken == "" {
		return g.next.AppendSubmission(ctx, sub)
	}

	key := g.key(sub.SessionToken)
	set, err := g.client.SetNX(ctx, key, sub.ID, g.ttl).Result()
	if err == nil && !set {
		if existing, lookupErr := g.next.GetBySessionToken(ctx, sub.SessionToken); lookupErr == nil {
			return existing, domain.ErrDuplicateSubmission
		}
		// Marker set but the append behind it never landed; fall
		// through and let the store decide.
	}

	stored, err := g.next.AppendSubmission(ctx, sub)
	if err != nil && err != domain.ErrDuplicateSubmission {
		// release the marker so a retry can go through
		_ = g.client.Del(ctx, key).Err()
	}
	return stored, err
}

func (g *SubmissionGuard) GetBySessionToken(ctx context.Context, token string) (domain.ScoredSubmission, error) {
	return g.next.GetBySessionToken(ctx, token)
}

func (g *SubmissionGuard) ListSubmissions(ctx context.Context, quizID string) ([]domain.ScoredSubmission, error) {
	return g.next.ListSubmissions(ctx, quizID)
}

func (g *SubmissionGuard) key(token string) string {
	return "quiz:submission:" + token
}
