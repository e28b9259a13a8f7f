package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quizpin-service/internal/app"
	"quizpin-service/internal/domain"
	"quizpin-service/internal/infra/memory"
	"quizpin-service/internal/session"
)

func newTestServer(t *testing.T, tickers session.TickerFactory) *httptest.Server {
	t.Helper()
	repo := memory.NewQuizRepository(memory.NewStaticQuizLoader(sampleQuizzes()), time.Minute)
	service := app.NewQuizService(repo, memory.NewSubmissionStore())

	var wsHandler *WSHandler
	if tickers != nil {
		wsHandler = NewWSHandlerWithTickers(service, tickers)
	} else {
		wsHandler = NewWSHandler(service)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestWebSocketFullAttempt(t *testing.T) {
	server := newTestServer(t, nil)

	conn := dial(t, server, "/ws?pin=PIN999&name=Alice")
	defer conn.Close()

	// Both questions share correct index 1, so the shuffle order does
	// not matter for the expected score.
	for slot := 0; slot < 2; slot++ {
		typ, payload := readNext(t, conn)
		if typ != "question" {
			t.Fatalf("expected question, got %s", typ)
		}
		if int(payload["slot"].(float64)) != slot {
			t.Fatalf("expected slot %d, got %v", slot, payload["slot"])
		}
		sendJSON(t, conn, map[string]any{"type": "select", "payload": map[string]any{"answerIndex": 1}})
		sendJSON(t, conn, map[string]any{"type": "next"})
	}

	typ, payload := readNext(t, conn)
	if typ != "result" {
		t.Fatalf("expected result, got %s", typ)
	}
	if payload["score"].(float64) != 2 || payload["percentage"].(float64) != 100 {
		t.Fatalf("expected perfect score, got %+v", payload)
	}
	if payload["wasAutoSubmitted"].(bool) {
		t.Fatalf("manual submit flagged as auto")
	}
	if payload["submissionId"] == "" {
		t.Fatalf("missing submission id")
	}
}

func TestWebSocketAdvanceWithoutSelection(t *testing.T) {
	server := newTestServer(t, nil)

	conn := dial(t, server, "/ws?pin=PIN999&name=Alice")
	defer conn.Close()

	typ, _ := readNext(t, conn)
	if typ != "question" {
		t.Fatalf("expected question, got %s", typ)
	}
	sendJSON(t, conn, map[string]any{"type": "next"})
	typ, payload := readNext(t, conn)
	if typ != "error" {
		t.Fatalf("expected validation error, got %s", typ)
	}
	if payload["message"] != "select an answer" {
		t.Fatalf("unexpected message %q", payload["message"])
	}
}

func TestWebSocketTimerAutoSubmit(t *testing.T) {
	made := make(chan *fakeTicker, 1)
	factory := func(_ time.Duration) session.Ticker {
		ft := &fakeTicker{c: make(chan time.Time)}
		made <- ft
		return ft
	}
	server := newTestServer(t, factory)

	conn := dial(t, server, "/ws?pin=TIMED1&name=Bob")
	defer conn.Close()

	typ, _ := readNext(t, conn)
	if typ != "question" {
		t.Fatalf("expected question, got %s", typ)
	}

	// Answer the first slot only.
	sendJSON(t, conn, map[string]any{"type": "select", "payload": map[string]any{"answerIndex": 1}})
	sendJSON(t, conn, map[string]any{"type": "next"})
	if typ, _ := readNext(t, conn); typ != "question" {
		t.Fatalf("expected second question, got %s", typ)
	}

	ticker := <-made
	// 59 ticks count down, the 60th expires the attempt.
	for i := 0; i < 59; i++ {
		ticker.c <- time.Now()
		typ, payload := readNext(t, conn)
		if typ != "tick" {
			t.Fatalf("tick %d: expected tick, got %s", i, typ)
		}
		if remaining := int(payload["remainingSeconds"].(float64)); remaining != 59-i {
			t.Fatalf("tick %d: expected %d remaining, got %d", i, 59-i, remaining)
		}
	}
	ticker.c <- time.Now()

	typ, payload := readNext(t, conn)
	if typ != "result" {
		t.Fatalf("expected result after expiry, got %s", typ)
	}
	if !payload["wasAutoSubmitted"].(bool) {
		t.Fatalf("expected auto-submitted result")
	}
	if payload["score"].(float64) != 1 || payload["percentage"].(float64) != 50 {
		t.Fatalf("expected partial credit 1/2, got %+v", payload)
	}
}

func TestWebSocketRejectsUnknownPIN(t *testing.T) {
	server := newTestServer(t, nil)

	u := "ws" + server.URL[len("http"):] + "/ws?pin=NOPE00&name=Alice"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial to fail for unknown pin")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %+v", resp)
	}
}

type fakeTicker struct {
	c chan time.Time
}

func (f *fakeTicker) Chan() <-chan time.Time { return f.c }

func (f *fakeTicker) Stop() {}

func dial(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + path
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func sendJSON(t *testing.T, conn *websocket.Conn, msg any) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readNext(t *testing.T, conn *websocket.Conn) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	payload := map[string]any{}
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
	}
	return msg.Type, payload
}

func sampleQuizzes() map[string]domain.Quiz {
	questions := []domain.Question{
		{
			Text:               "What is 2 + 2?",
			Answers:            []string{"3", "4", "5"},
			CorrectAnswerIndex: 1,
		},
		{
			Text:               "What is 3 * 3?",
			Answers:            []string{"6", "9"},
			CorrectAnswerIndex: 1,
		},
	}
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:        "quiz-1",
			Title:     "Untimed",
			PIN:       "PIN999",
			Questions: questions,
		},
		"quiz-2": {
			ID:               "quiz-2",
			Title:            "Timed",
			PIN:              "TIMED1",
			Questions:        questions,
			HasTimeLimit:     true,
			TimeLimitMinutes: 1,
		},
	}
}
