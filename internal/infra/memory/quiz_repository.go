package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quizpin-service/internal/domain"
)

// QuizLoader fetches quiz content from a backing store (document DB or
// SQL).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	LoadQuizByPIN(ctx context.Context, pin string) (domain.Quiz, error)
}

// QuizRepository caches quizzes with TTL to avoid repeated store hits.
// It serves both the answer-keyed quiz (for scoring) and the student
// projection from the same cache entry.
type QuizRepository struct {
	loader QuizLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedQuiz
	pins  map[string]string // PIN -> quiz id, filled as quizzes load
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

func NewQuizRepository(loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuiz),
		pins:   make(map[string]string),
	}
}

func (r *QuizRepository) GetQuizWithAnswerKeys(ctx context.Context, quizID string) (domain.Quiz, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[quizID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.quiz, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[quizID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.quiz, nil
		}
		r.mu.RUnlock()

		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		r.store(quiz, now)
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
	r.mu.RLock()
	quizID, ok := r.pins[pin]
	r.mu.RUnlock()
	if ok {
		return r.GetQuizForStudent(ctx, quizID)
	}

	quiz, err := r.loader.LoadQuizByPIN(ctx, pin)
	if err != nil {
		return domain.StudentQuiz{}, err
	}
	r.store(quiz, r.clock())
	return quiz.ForStudent(), nil
}

func (r *QuizRepository) store(quiz domain.Quiz, now time.Time) {
	r.mu.Lock()
	r.cache[quiz.ID] = cachedQuiz{quiz: quiz, expiresAt: now.Add(r.ttlWithJitter())}
	if quiz.PIN != "" {
		r.pins[quiz.PIN] = quiz.ID
	}
	r.mu.Unlock()
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticQuizLoader is a loader backed by an in-memory map (useful for
// tests/demos). Quizzes without a PIN get one assigned.
type StaticQuizLoader struct {
	quizzes map[string]domain.Quiz
	pins    map[string]string
}

func NewStaticQuizLoader(quizzes map[string]domain.Quiz) *StaticQuizLoader {
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	pins := make(map[string]string, len(quizzes))
	for id, quiz := range quizzes {
		if quiz.PIN == "" {
			quiz.PIN = domain.NewPIN(rnd)
			quizzes[id] = quiz
		}
		pins[quiz.PIN] = id
	}
	return &StaticQuizLoader{quizzes: quizzes, pins: pins}
}

func (l *StaticQuizLoader) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := l.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

func (l *StaticQuizLoader) LoadQuizByPIN(ctx context.Context, pin string) (domain.Quiz, error) {
	if id, ok := l.pins[pin]; ok {
		return l.LoadQuiz(ctx, id)
	}
	return domain.Quiz{}, domain.ErrInvalidPIN
}
