package memory

import (
	"context"
	"sync"

	"quizpin-service/internal/domain"
)

// SubmissionStore is an in-memory implementation of
// app.SubmissionRepository. Appends are idempotent on the session
// token.
type SubmissionStore struct {
	mu      sync.RWMutex
	byQuiz  map[string][]domain.ScoredSubmission
	byToken map[string]domain.ScoredSubmission
}

func NewSubmissionStore() *SubmissionStore {
	return &SubmissionStore{
		byQuiz:  make(map[string][]domain.ScoredSubmission),
		byToken: make(map[string]domain.ScoredSubmission),
	}
}

func (s *SubmissionStore) AppendSubmission(_ context.Context, sub domain.ScoredSubmission) (domain.ScoredSubmission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub.SessionToken != "" {
		if existing, ok := s.byToken[sub.SessionToken]; ok {
			return existing, domain.ErrDuplicateSubmission
		}
		s.byToken[sub.SessionToken] = sub
	}
	s.byQuiz[sub.QuizID] = append(s.byQuiz[sub.QuizID], sub)
	return sub, nil
}

func (s *SubmissionStore) GetBySessionToken(_ context.Context, token string) (domain.ScoredSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sub, ok := s.byToken[token]; ok {
		return sub, nil
	}
	return domain.ScoredSubmission{}, domain.ErrSubmissionNotFound
}

func (s *SubmissionStore) ListSubmissions(_ context.Context, quizID string) ([]domain.ScoredSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subs := s.byQuiz[quizID]
	out := make([]domain.ScoredSubmission, len(subs))
	copy(out, subs)
	return out, nil
}
