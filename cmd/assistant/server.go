package main

import (
	"encoding/json"
	"net/http"
	"strings"

	"invoice-assistant/internal/common/auth"
	commonerrors "invoice-assistant/internal/common/errors"
	"invoice-assistant/internal/common/logger"
	"invoice-assistant/internal/orchestrator"
)

// chatServer is the thin HTTP surface over the orchestrator. Presentation
// stays out of the core: these handlers only decode, authenticate and
// re-encode.
type chatServer struct {
	orch     *orchestrator.Orchestrator
	verifier auth.Verifier
	errors   *commonerrors.Handler
	logger   logger.Logger
}

func newChatServer(orch *orchestrator.Orchestrator, verifier auth.Verifier, log logger.Logger) *chatServer {
	return &chatServer{
		orch:     orch,
		verifier: verifier,
		errors:   commonerrors.NewHandler(log),
		logger:   log,
	}
}

func (s *chatServer) register(mux *http.ServeMux) {
	mux.HandleFunc("/api/chat/message", s.handleMessage)
	mux.HandleFunc("/api/chat/confirm", s.handleConfirm)
	mux.HandleFunc("/api/chat/reject", s.handleReject)
}

type messageRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type actionRequest struct {
	SessionID string `json:"sessionId"`
	ActionID  string `json:"actionId"`
}

func (s *chatServer) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	userID := s.authenticate(r)
	resp, err := s.orch.HandleMessage(r.Context(), userID, req.SessionID, req.Message)
	s.respond(w, resp, err)
}

func (s *chatServer) handleConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ActionID == "" {
		http.Error(w, "actionId is required", http.StatusBadRequest)
		return
	}

	userID := s.authenticate(r)
	resp, err := s.orch.ConfirmAction(r.Context(), userID, req.SessionID, req.ActionID)
	s.respond(w, resp, err)
}

func (s *chatServer) handleReject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ActionID == "" {
		http.Error(w, "actionId is required", http.StatusBadRequest)
		return
	}

	userID := s.authenticate(r)
	resp, err := s.orch.RejectAction(r.Context(), userID, req.SessionID, req.ActionID)
	s.respond(w, resp, err)
}

// authenticate resolves the bearer token to a user id. An empty result is
// the orchestrator's AUTH_REQUIRED signal, not an HTTP-level rejection, so
// the reply stays conversational.
func (s *chatServer) authenticate(r *http.Request) string {
	header := r.Header.Get("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" || token == header {
		return ""
	}
	id, err := s.verifier.Verify(r.Context(), token)
	if err != nil {
		s.logger.WithError(err).Debug("token verification failed", nil)
		return ""
	}
	return id.UserID
}

func (s *chatServer) respond(w http.ResponseWriter, resp *orchestrator.Response, err error) {
	if err != nil {
		s.errors.HandleHTTP(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if encErr := json.NewEncoder(w).Encode(resp); encErr != nil {
		s.logger.WithError(encErr).Error("response encoding failed", nil)
	}
}
