package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizpin-service/internal/domain"
)

// SubmissionStore persists scored submissions as JSONB rows. The
// unique constraint on session_token is what makes retried appends
// idempotent.
type SubmissionStore struct {
	pool *pgxpool.Pool
}

func NewSubmissionStore(pool *pgxpool.Pool) *SubmissionStore {
	return &SubmissionStore{pool: pool}
}

func (s *SubmissionStore) AppendSubmission(ctx context.Context, sub domain.ScoredSubmission) (domain.ScoredSubmission, error) {
	data, err := json.Marshal(sub)
	if err != nil {
		return domain.ScoredSubmission{}, fmt.Errorf("marshal submission: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO quiz_submissions (id, quiz_id, session_token, data, submitted_at)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5)
		 ON CONFLICT (session_token) DO NOTHING`,
		sub.ID, sub.QuizID, sub.SessionToken, data, sub.SubmittedAt)
	if err != nil {
		return domain.ScoredSubmission{}, fmt.Errorf("append submission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		existing, err := s.GetBySessionToken(ctx, sub.SessionToken)
		if err != nil {
			return domain.ScoredSubmission{}, err
		}
		return existing, domain.ErrDuplicateSubmission
	}
	return sub, nil
}

func (s *SubmissionStore) GetBySessionToken(ctx context.Context, token string) (domain.ScoredSubmission, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM quiz_submissions WHERE session_token=$1`, token).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ScoredSubmission{}, domain.ErrSubmissionNotFound
	}
	if err != nil {
		return domain.ScoredSubmission{}, fmt.Errorf("get submission: %w", err)
	}
	return unmarshalSubmission(raw)
}

func (s *SubmissionStore) ListSubmissions(ctx context.Context, quizID string) ([]domain.ScoredSubmission, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM quiz_submissions WHERE quiz_id=$1 ORDER BY submitted_at`, quizID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var subs []domain.ScoredSubmission
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		sub, err := unmarshalSubmission(raw)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func unmarshalSubmission(raw []byte) (domain.ScoredSubmission, error) {
	var sub domain.ScoredSubmission
	if err := json.Unmarshal(raw, &sub); err != nil {
		return domain.ScoredSubmission{}, fmt.Errorf("unmarshal submission: %w", err)
	}
	return sub, nil
}
