package domain

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Unanswered is the reserved answer index meaning the student skipped
// the question. It never matches a valid answer index.
const Unanswered = -1

// NoAnswerText is the display text used for an unanswered question.
const NoAnswerText = "No answer"

// Question models an MCQ question. CorrectAnswerIndex is server-side
// only and must never reach the student before submission.
type Question struct {
	Text               string   `json:"text"`
	Answers            []string `json:"answers"`
	CorrectAnswerIndex int      `json:"correctAnswerIndex"`
}

// Quiz is the canonical quiz definition, answer keys included.
type Quiz struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	SchoolName       string     `json:"schoolName"`
	TeacherName      string     `json:"teacherName"`
	Major            string     `json:"major"`
	PIN              string     `json:"pin"`
	Language         string     `json:"language"`
	Questions        []Question `json:"questions"`
	HasTimeLimit     bool       `json:"hasTimeLimit"`
	TimeLimitMinutes int        `json:"timeLimitMinutes"`
}

// StudentQuestion is the client-visible projection of a question.
type StudentQuestion struct {
	Text    string   `json:"text"`
	Answers []string `json:"answers"`
}

// StudentQuiz is the quiz as the student sees it: same metadata and
// question order as the canonical quiz, answer keys stripped.
type StudentQuiz struct {
	ID               string            `json:"id"`
	Title            string            `json:"title"`
	SchoolName       string            `json:"schoolName"`
	TeacherName      string            `json:"teacherName"`
	Major            string            `json:"major"`
	Language         string            `json:"language"`
	Questions        []StudentQuestion `json:"questions"`
	HasTimeLimit     bool              `json:"hasTimeLimit"`
	TimeLimitMinutes int               `json:"timeLimitMinutes"`
}

// ForStudent strips the answer keys, preserving canonical order.
func (q Quiz) ForStudent() StudentQuiz {
	questions := make([]StudentQuestion, len(q.Questions))
	for i, question := range q.Questions {
		questions[i] = StudentQuestion{
			Text:    question.Text,
			Answers: question.Answers,
		}
	}
	return StudentQuiz{
		ID:               q.ID,
		Title:            q.Title,
		SchoolName:       q.SchoolName,
		TeacherName:      q.TeacherName,
		Major:            q.Major,
		Language:         q.Language,
		Questions:        questions,
		HasTimeLimit:     q.HasTimeLimit,
		TimeLimitMinutes: q.TimeLimitMinutes,
	}
}

// Validate checks the invariants a quiz must satisfy before it can be
// served: 2-6 answers per question, correct index in range, and a sane
// time limit when one is set.
func (q Quiz) Validate() error {
	for i, question := range q.Questions {
		if n := len(question.Answers); n < 2 || n > 6 {
			return fmt.Errorf("question %d: must have between 2 and 6 answers, has %d", i, n)
		}
		if question.CorrectAnswerIndex < 0 || question.CorrectAnswerIndex >= len(question.Answers) {
			return fmt.Errorf("question %d: correct answer index %d out of range", i, question.CorrectAnswerIndex)
		}
	}
	if q.HasTimeLimit && (q.TimeLimitMinutes < 1 || q.TimeLimitMinutes > 1440) {
		return fmt.Errorf("time limit %d minutes out of range [1,1440]", q.TimeLimitMinutes)
	}
	return nil
}

// QuestionResult is the per-question breakdown of a scored submission,
// indexed by canonical question order.
type QuestionResult struct {
	QuestionIndex      int    `json:"questionIndex"`
	QuestionText       string `json:"questionText"`
	UserAnswerIndex    int    `json:"userAnswerIndex"`
	UserAnswerText     string `json:"userAnswerText"`
	CorrectAnswerIndex int    `json:"correctAnswerIndex"`
	CorrectAnswerText  string `json:"correctAnswerText"`
	IsCorrect          bool   `json:"isCorrect"`
}

// ScoredSubmission is the immutable record of one completed attempt.
type ScoredSubmission struct {
	ID               string           `json:"id"`
	QuizID           string           `json:"quizId"`
	SessionToken     string           `json:"sessionToken"`
	UserName         string           `json:"userName"`
	Answers          []int            `json:"answers"`
	Score            int              `json:"score"`
	TotalQuestions   int              `json:"totalQuestions"`
	Percentage       int              `json:"percentage"`
	Results          []QuestionResult `json:"results"`
	TimeSpentSeconds int              `json:"timeSpent"`
	WasAutoSubmitted bool             `json:"wasAutoSubmitted"`
	SubmittedAt      time.Time        `json:"submittedAt"`
}

const pinAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewPIN generates a 6-character join code.
func NewPIN(rnd *rand.Rand) string {
	var b strings.Builder
	for i := 0; i < 6; i++ {
		b.WriteByte(pinAlphabet[rnd.Intn(len(pinAlphabet))])
	}
	return b.String()
}
