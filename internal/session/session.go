// Package session owns the lifecycle of a single student's quiz
// attempt: it shuffles the presentation order, tracks answers against
// the canonical question order, runs the countdown, and hands exactly
// one finalized submission to the scoring boundary.
package session

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"quizpin-service/internal/domain"
)

// Status is the attempt lifecycle state.
type Status int

const (
	StatusNotStarted Status = iota
	StatusInProgress
	StatusSubmitting
	StatusSubmitted
	StatusAbandoned
)

func (s Status) String() string {
	switch s {
	case StatusNotStarted:
		return "not_started"
	case StatusInProgress:
		return "in_progress"
	case StatusSubmitting:
		return "submitting"
	case StatusSubmitted:
		return "submitted"
	case StatusAbandoned:
		return "abandoned"
	}
	return "unknown"
}

var (
	// ErrSubmissionInFlight is returned when Submit is re-entered while
	// a previous call has not come back yet.
	ErrSubmissionInFlight = errors.New("submission already in flight")
	// ErrNotSubmitting is returned when Submit is called before the
	// attempt has been finalized.
	ErrNotSubmitting = errors.New("session is not ready to submit")
	// ErrSessionClosed is returned for mutations on a terminal session.
	ErrSessionClosed = errors.New("session is closed")
)

// SubmitRequest is the finalized answer snapshot handed to the scoring
// boundary. Once built it is never recomputed; a retry after a network
// failure resubmits the same snapshot.
type SubmitRequest struct {
	QuizID           string
	SessionToken     string
	UserName         string
	Answers          []int
	TimeSpentSeconds int
	WasAutoSubmitted bool
}

// Submitter is the scoring boundary. Implementations score the answers
// against the real keys server-side and persist the result.
type Submitter interface {
	Submit(ctx context.Context, req SubmitRequest) (domain.ScoredSubmission, error)
}

// Session is a single student's attempt. It is not safe for concurrent
// use: timer ticks, user input, and the submit call must be serialized
// on one event loop by the caller.
type Session struct {
	quiz     domain.StudentQuiz
	userName string
	token    string

	// order[slot] = canonical question index; answers are stored by
	// canonical index so the scorer can read them against the keys.
	order       []int
	answers     []int
	currentSlot int
	selected    int

	startedAt        time.Time
	hasTimeLimit     bool
	remainingSeconds int

	status   Status
	now      func() time.Time
	snapshot *SubmitRequest
	result   *domain.ScoredSubmission
}

// Start begins an attempt for the given student. The quiz carries no
// answer keys; scoring stays server-side.
func Start(quiz domain.StudentQuiz, userName string, rnd *rand.Rand) (*Session, error) {
	return StartWithClock(quiz, userName, rnd, time.Now)
}

// StartWithClock allows deterministic timestamps in tests.
func StartWithClock(quiz domain.StudentQuiz, userName string, rnd *rand.Rand, now func() time.Time) (*Session, error) {
	userName = strings.TrimSpace(userName)
	if userName == "" {
		return nil, domain.Validation("user name is required")
	}

	n := len(quiz.Questions)
	answers := make([]int, n)
	for i := range answers {
		answers[i] = domain.Unanswered
	}

	s := &Session{
		quiz:      quiz,
		userName:  userName,
		token:     uuid.NewString(),
		order:     NewPresentationOrder(n, rnd),
		answers:   answers,
		selected:  domain.Unanswered,
		startedAt: now(),
		status:    StatusInProgress,
		now:       now,
	}
	if quiz.HasTimeLimit {
		s.hasTimeLimit = true
		s.remainingSeconds = quiz.TimeLimitMinutes * 60
	}
	return s, nil
}

// Status returns the lifecycle state.
func (s *Session) Status() Status { return s.status }

// Token is the per-attempt idempotency token; submission stores use it
// to reject duplicate appends from retried submits.
func (s *Session) Token() string { return s.token }

// UserName returns the student's name.
func (s *Session) UserName() string { return s.userName }

// TotalQuestions returns the question count.
func (s *Session) TotalQuestions() int { return len(s.order) }

// Slot returns the zero-based presentation-order cursor.
func (s *Session) Slot() int { return s.currentSlot }

// CurrentQuestion returns the question shown at the current slot. ok is
// false for a quiz with no questions.
func (s *Session) CurrentQuestion() (domain.StudentQuestion, bool) {
	if len(s.order) == 0 {
		return domain.StudentQuestion{}, false
	}
	return s.quiz.Questions[s.order[s.currentSlot]], true
}

// Selected returns the transient, not yet committed choice for the
// current slot, or domain.Unanswered.
func (s *Session) Selected() int { return s.selected }

// Progress returns the fraction of questions reached, in [0,1].
func (s *Session) Progress() float64 {
	if len(s.order) == 0 {
		return 0
	}
	return float64(s.currentSlot+1) / float64(len(s.order))
}

// RemainingSeconds returns the countdown value; ok is false when the
// quiz has no time limit.
func (s *Session) RemainingSeconds() (int, bool) {
	if !s.hasTimeLimit {
		return 0, false
	}
	return s.remainingSeconds, true
}

// SelectAnswer records a transient choice for the current slot. It is
// not committed until Advance.
func (s *Session) SelectAnswer(answerIndex int) error {
	if s.status != StatusInProgress {
		return ErrSessionClosed
	}
	question, ok := s.CurrentQuestion()
	if !ok {
		return domain.Validation("quiz has no questions")
	}
	if answerIndex < 0 || answerIndex >= len(question.Answers) {
		return domain.Validation("answer index out of range")
	}
	s.selected = answerIndex
	return nil
}

// Advance commits the transient choice at answers[order[slot]] and
// moves to the next slot. On the last slot it finalizes the attempt
// instead, leaving the session ready for Submit. Advancing without a
// selection is rejected and changes nothing.
func (s *Session) Advance() error {
	if s.status != StatusInProgress {
		return ErrSessionClosed
	}
	if len(s.order) == 0 {
		s.finalize(false)
		return nil
	}
	if s.selected == domain.Unanswered {
		return domain.Validation("select an answer")
	}

	s.answers[s.order[s.currentSlot]] = s.selected
	if s.currentSlot == len(s.order)-1 {
		s.finalize(false)
		return nil
	}
	s.currentSlot++
	s.selected = previouslyCommitted(s.answers, s.order, s.currentSlot)
	return nil
}

// Retreat moves back one slot, restoring whatever was committed there
// for display. The stored answer is not erased. At slot 0 it is a no-op.
func (s *Session) Retreat() error {
	if s.status != StatusInProgress {
		return ErrSessionClosed
	}
	if s.currentSlot == 0 {
		return nil
	}
	s.currentSlot--
	s.selected = previouslyCommitted(s.answers, s.order, s.currentSlot)
	return nil
}

func previouslyCommitted(answers, order []int, slot int) int {
	return answers[order[slot]]
}

// Tick advances the countdown by one second. It reports true exactly
// once, when the timer expires: the attempt is finalized with whatever
// has been committed so far and the caller must invoke Submit. Ticks on
// untimed or closed sessions do nothing.
func (s *Session) Tick() bool {
	if !s.hasTimeLimit || s.status != StatusInProgress {
		return false
	}
	s.remainingSeconds--
	if s.remainingSeconds > 0 {
		return false
	}
	s.remainingSeconds = 0
	s.finalize(true)
	return true
}

// finalize snapshots the committed answers and enters Submitting. The
// transient selection is deliberately not committed: auto-submit sends
// only what the student confirmed.
func (s *Session) finalize(auto bool) {
	answers := make([]int, len(s.answers))
	copy(answers, s.answers)
	s.snapshot = &SubmitRequest{
		QuizID:           s.quiz.ID,
		SessionToken:     s.token,
		UserName:         s.userName,
		Answers:          answers,
		TimeSpentSeconds: int(s.now().Sub(s.startedAt) / time.Second),
		WasAutoSubmitted: auto,
	}
	s.status = StatusSubmitting
}

// Submit delivers the finalized snapshot to the scoring boundary. It
// succeeds at most once: a call while a previous one is in flight is
// rejected, and a call after success returns the stored result without
// touching the boundary again. A failed call leaves the snapshot intact
// so the same answers can be resubmitted.
func (s *Session) Submit(ctx context.Context, submitter Submitter) (domain.ScoredSubmission, error) {
	switch s.status {
	case StatusSubmitted:
		return *s.result, nil
	case StatusSubmitting:
		if s.snapshot == nil {
			return domain.ScoredSubmission{}, ErrSubmissionInFlight
		}
	default:
		return domain.ScoredSubmission{}, ErrNotSubmitting
	}

	req := s.snapshot
	s.snapshot = nil // guards re-entry while the call is outstanding

	result, err := submitter.Submit(ctx, *req)
	if err != nil {
		s.snapshot = req
		return domain.ScoredSubmission{}, err
	}

	s.status = StatusSubmitted
	s.result = &result
	return result, nil
}

// Result returns the scored submission once Submitted.
func (s *Session) Result() (domain.ScoredSubmission, bool) {
	if s.result == nil {
		return domain.ScoredSubmission{}, false
	}
	return *s.result, true
}

// Abandon closes the session without persisting anything. The attempt
// is silently lost, not an error.
func (s *Session) Abandon() {
	if s.status == StatusInProgress || s.status == StatusSubmitting {
		s.status = StatusAbandoned
		s.snapshot = nil
	}
}
