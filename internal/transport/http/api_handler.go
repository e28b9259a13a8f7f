package http

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"quizpin-service/internal/app"
	"quizpin-service/internal/domain"
	"quizpin-service/internal/session"
)

// APIHandler exposes the REST surface the web client talks to:
//
//	POST /api/quizzes/join              {pin, userName}
//	GET  /api/quizzes/{id}              student projection
//	POST /api/quizzes/{id}/submit       finalized answers
//	GET  /api/quizzes/{id}/submissions  scored submissions
type APIHandler struct {
	service *app.QuizService
}

func NewAPIHandler(service *app.QuizService) *APIHandler {
	return &APIHandler{service: service}
}

// Register wires the routes into the mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/quizzes/join", h.handleJoin)
	mux.HandleFunc("/api/quizzes/", h.handleQuiz)
}

type apiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

type joinRequest struct {
	PIN      string `json:"pin"`
	UserName string `json:"userName"`
}

type submitRequest struct {
	Answers          []int  `json:"answers"`
	UserName         string `json:"userName"`
	SessionToken     string `json:"sessionToken"`
	TimeSpent        int    `json:"timeSpent"`
	WasAutoSubmitted bool   `json:"wasAutoSubmitted"`
}

func (h *APIHandler) handleJoin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	quiz, err := h.service.JoinByPIN(r.Context(), req.PIN, req.UserName)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: quiz})
}

// handleQuiz dispatches /api/quizzes/{id}[/submit|/submissions].
func (h *APIHandler) handleQuiz(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/quizzes/")
	parts := strings.SplitN(rest, "/", 2)
	quizID := parts[0]
	if quizID == "" {
		writeError(w, http.StatusNotFound, "quiz id required")
		return
	}

	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}
	switch {
	case action == "" && r.Method == http.MethodGet:
		h.getQuiz(w, r, quizID)
	case action == "submit" && r.Method == http.MethodPost:
		h.submitQuiz(w, r, quizID)
	case action == "submissions" && r.Method == http.MethodGet:
		h.listSubmissions(w, r, quizID)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *APIHandler) getQuiz(w http.ResponseWriter, r *http.Request, quizID string) {
	quiz, err := h.service.GetQuizForStudent(r.Context(), quizID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: quiz})
}

func (h *APIHandler) submitQuiz(w http.ResponseWriter, r *http.Request, quizID string) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := h.service.Submit(r.Context(), session.SubmitRequest{
		QuizID:           quizID,
		SessionToken:     req.SessionToken,
		UserName:         req.UserName,
		Answers:          req.Answers,
		TimeSpentSeconds: req.TimeSpent,
		WasAutoSubmitted: req.WasAutoSubmitted,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: result})
}

func (h *APIHandler) listSubmissions(w http.ResponseWriter, r *http.Request, quizID string) {
	subs, err := h.service.ListSubmissions(r.Context(), quizID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if subs == nil {
		subs = []domain.ScoredSubmission{}
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: subs})
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case err == domain.ErrQuizNotFound || err == domain.ErrInvalidPIN:
		writeError(w, http.StatusNotFound, err.Error())
	default:
		log.Printf("request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiResponse{Success: false, Error: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}
