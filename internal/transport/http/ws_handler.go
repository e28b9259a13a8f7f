package http

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"quizpin-service/internal/app"
	"quizpin-service/internal/domain"
	"quizpin-service/internal/session"
)

// WSHandler runs a student's attempt server-side over a websocket. The
// per-connection loop is the session's single timeline: timer ticks and
// inbound events are selected over together, so the engine never sees
// concurrent mutation and the countdown cannot race a manual submit.
type WSHandler struct {
	service  *app.QuizService
	tickers  session.TickerFactory
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService) *WSHandler {
	return NewWSHandlerWithTickers(service, session.NewTicker)
}

// NewWSHandlerWithTickers is test-only for driving a virtual clock.
func NewWSHandlerWithTickers(service *app.QuizService, tickers session.TickerFactory) *WSHandler {
	return &WSHandler{
		service: service,
		tickers: tickers,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	AnswerIndex int `json:"answerIndex"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

type questionPayload struct {
	Slot             int      `json:"slot"`
	TotalQuestions   int      `json:"totalQuestions"`
	Text             string   `json:"text"`
	Answers          []string `json:"answers"`
	Selected         int      `json:"selected"`
	Progress         float64  `json:"progress"`
	RemainingSeconds *int     `json:"remainingSeconds,omitempty"`
}

type tickPayload struct {
	RemainingSeconds int `json:"remainingSeconds"`
}

type resultPayload struct {
	UserName         string                  `json:"userName"`
	Score            int                     `json:"score"`
	TotalQuestions   int                     `json:"totalQuestions"`
	Percentage       int                     `json:"percentage"`
	Results          []domain.QuestionResult `json:"results"`
	TimeSpent        int                     `json:"timeSpent"`
	WasAutoSubmitted bool                    `json:"wasAutoSubmitted"`
	QuizTitle        string                  `json:"quizTitle"`
	SchoolName       string                  `json:"schoolName"`
	TeacherName      string                  `json:"teacherName"`
	Major            string                  `json:"major"`
	SubmissionID     string                  `json:"submissionId"`
}

// ServeWS upgrades the request and drives one attempt to completion.
// Query params: name plus either pin or quizId.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	pin := r.URL.Query().Get("pin")
	quizID := r.URL.Query().Get("quizId")
	if name == "" || (pin == "" && quizID == "") {
		http.Error(w, "missing name and pin or quizId", http.StatusBadRequest)
		return
	}

	var (
		quiz domain.StudentQuiz
		err  error
	)
	if pin != "" {
		quiz, err = h.service.JoinByPIN(r.Context(), pin, name)
	} else {
		quiz, err = h.service.GetQuizForStudent(r.Context(), quizID)
	}
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case domain.IsValidation(err):
			status = http.StatusBadRequest
		case err == domain.ErrQuizNotFound || err == domain.ErrInvalidPIN:
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	attempt, err := session.Start(quiz, name, rnd)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	h.run(r.Context(), conn, quiz, attempt)
}

// run owns the attempt's event loop. The reader goroutine only pumps
// raw messages; every session mutation happens here.
func (h *WSHandler) run(ctx context.Context, conn *websocket.Conn, quiz domain.StudentQuiz, attempt *session.Session) {
	inbound := make(chan inboundMessage)
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			var msg inboundMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			select {
			case inbound <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	var tickC <-chan time.Time
	var ticker session.Ticker
	if _, ok := attempt.RemainingSeconds(); ok {
		ticker = h.tickers(time.Second)
		tickC = ticker.Chan()
	}
	stopTicker := func() {
		if ticker != nil {
			ticker.Stop()
			ticker = nil
			tickC = nil
		}
	}
	defer stopTicker()

	// A quiz with no questions short-circuits straight to submission.
	if attempt.TotalQuestions() == 0 {
		_ = attempt.Advance()
		stopTicker()
		h.submit(ctx, conn, quiz, attempt)
		return
	}

	h.sendQuestion(conn, attempt)

	for {
		select {
		case <-tickC:
			if attempt.Tick() {
				// timer expired; no further ticks may fire
				stopTicker()
				if h.submit(ctx, conn, quiz, attempt) {
					return
				}
				continue
			}
			if remaining, ok := attempt.RemainingSeconds(); ok {
				h.send(conn, "tick", tickPayload{RemainingSeconds: remaining})
			}

		case msg := <-inbound:
			if done := h.handleMessage(ctx, conn, quiz, attempt, msg, stopTicker); done {
				return
			}

		case <-readerDone:
			attempt.Abandon()
			return

		case <-ctx.Done():
			attempt.Abandon()
			return
		}
	}
}

func (h *WSHandler) handleMessage(ctx context.Context, conn *websocket.Conn, quiz domain.StudentQuiz, attempt *session.Session, msg inboundMessage, stopTicker func()) bool {
	switch msg.Type {
	case "select":
		var payload selectPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			h.sendError(conn, "invalid select payload", false)
			return false
		}
		if err := attempt.SelectAnswer(payload.AnswerIndex); err != nil {
			h.sendError(conn, err.Error(), false)
		}
		return false

	case "next":
		if err := attempt.Advance(); err != nil {
			h.sendError(conn, err.Error(), false)
			return false
		}
		if attempt.Status() == session.StatusSubmitting {
			stopTicker()
			return h.submit(ctx, conn, quiz, attempt)
		}
		h.sendQuestion(conn, attempt)
		return false

	case "prev":
		if err := attempt.Retreat(); err != nil {
			h.sendError(conn, err.Error(), false)
			return false
		}
		h.sendQuestion(conn, attempt)
		return false

	case "submit":
		// retry after a failed submission; the finalized snapshot is
		// resubmitted as-is
		if attempt.Status() != session.StatusSubmitting {
			h.sendError(conn, "nothing to submit", false)
			return false
		}
		return h.submit(ctx, conn, quiz, attempt)

	default:
		h.sendError(conn, "unsupported message type", false)
		return false
	}
}

// submit pushes the finalized attempt through the scoring boundary.
// Returns true when the attempt is complete and the connection should
// close; false leaves the session retryable.
func (h *WSHandler) submit(ctx context.Context, conn *websocket.Conn, quiz domain.StudentQuiz, attempt *session.Session) bool {
	result, err := attempt.Submit(ctx, h.service)
	if err != nil {
		log.Printf("submit failed for quiz %s: %v", quiz.ID, err)
		h.sendError(conn, "failed to submit quiz", true)
		return false
	}
	h.send(conn, "result", resultPayload{
		UserName:         result.UserName,
		Score:            result.Score,
		TotalQuestions:   result.TotalQuestions,
		Percentage:       result.Percentage,
		Results:          result.Results,
		TimeSpent:        result.TimeSpentSeconds,
		WasAutoSubmitted: result.WasAutoSubmitted,
		QuizTitle:        quiz.Title,
		SchoolName:       quiz.SchoolName,
		TeacherName:      quiz.TeacherName,
		Major:            quiz.Major,
		SubmissionID:     result.ID,
	})
	return true
}

func (h *WSHandler) sendQuestion(conn *websocket.Conn, attempt *session.Session) {
	question, ok := attempt.CurrentQuestion()
	if !ok {
		return
	}
	payload := questionPayload{
		Slot:           attempt.Slot(),
		TotalQuestions: attempt.TotalQuestions(),
		Text:           question.Text,
		Answers:        question.Answers,
		Selected:       attempt.Selected(),
		Progress:       attempt.Progress(),
	}
	if remaining, ok := attempt.RemainingSeconds(); ok {
		payload.RemainingSeconds = &remaining
	}
	h.send(conn, "question", payload)
}

func (h *WSHandler) sendError(conn *websocket.Conn, message string, retryable bool) {
	h.send(conn, "error", errorPayload{Message: message, Retryable: retryable})
}

func (h *WSHandler) send(conn *websocket.Conn, typ string, payload any) {
	if err := conn.WriteJSON(outboundMessage[any]{Type: typ, Payload: payload}); err != nil {
		log.Printf("ws write error: %v", err)
	}
}
