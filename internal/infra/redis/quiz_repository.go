package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quizpin-service/internal/domain"
)

// QuizLoader fetches quiz content from a backing store (document DB or
// SQL).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	LoadQuizByPIN(ctx context.Context, pin string) (domain.Quiz, error)
}

// QuizRepository caches full quiz definitions in Redis and falls back
// to a loader on cache miss. Layout:
//
//	SET quiz:{quizID}:def  {quiz JSON, answer keys included}
//	SET quiz:pin:{PIN}     {quizID}
//
// The definition must be cached whole: scoring needs question and
// answer texts to build per-question results, not just the key index.
type QuizRepository struct {
	client *redis.Client
	loader QuizLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuizRepository(client *redis.Client, loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) GetQuizWithAnswerKeys(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := r.cached(ctx, quizID); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := r.cached(ctx, quizID); ok {
			return quiz, nil
		}
		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		r.cache(ctx, quiz)
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (r *QuizRepository) GetQuizForStudent(ctx context.Context, quizID string) (domain.StudentQuiz, error) {
	quiz, err := r.GetQuizWithAnswerKeys(ctx, quizID)
	if err != nil {
		return domain.StudentQuiz{}, err
	}
	return quiz.ForStudent(), nil
}

func (r *QuizRepository) GetQuizByPIN(ctx context.Context, pin string) (domain.StudentQuiz, error) {
	quizID, err := r.client.Get(ctx, r.pinKey(pin)).Result()
	if err == nil && quizID != "" {
		return r.GetQuizForStudent(ctx, quizID)
	}

	quiz, err := r.loader.LoadQuizByPIN(ctx, pin)
	if err != nil {
		return domain.StudentQuiz{}, err
	}
	r.cache(ctx, quiz)
	return quiz.ForStudent(), nil
}

func (r *QuizRepository) cached(ctx context.Context, quizID string) (domain.Quiz, bool) {
	raw, err := r.client.Get(ctx, r.defKey(quizID)).Bytes()
	if err != nil || len(raw) == 0 {
		return domain.Quiz{}, false
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, false
	}
	return quiz, true
}

func (r *QuizRepository) cache(ctx context.Context, quiz domain.Quiz) {
	raw, err := json.Marshal(quiz)
	if err != nil {
		return
	}
	ttl := r.ttlWithJitter()
	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.defKey(quiz.ID), raw, ttl)
	if quiz.PIN != "" {
		pipe.Set(ctx, r.pinKey(quiz.PIN), quiz.ID, ttl)
	}
	// best-effort: a failed cache write just means a reload next time
	_, _ = pipe.Exec(ctx)
}

func (r *QuizRepository) defKey(quizID string) string {
	return "quiz:" + quizID + ":def"
}

func (r *QuizRepository) pinKey(pin string) string {
	return "quiz:pin:" + pin
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
