// Package api provides HTTP handlers for NIRO endpoints.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/nirolabs/niro/internal/models"
	"github.com/nirolabs/niro/internal/topics"
)

// sessionSnapshot is the session surface view: the state plus the topics
// worth suggesting for its mode.
type sessionSnapshot struct {
	Session         *models.ConversationState `json:"session"`
	SuggestedTopics []models.Topic            `json:"suggestedTopics,omitempty"`
}

// chatHandler handles POST /chat. A request without a session id starts a
// fresh session under a generated id, returned in the response.
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.chatHandler: processing chat request", "method", r.Method, "path", r.URL.Path)

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.chatHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
		slog.Debug("Server.chatHandler: generated session id", "sessionID", req.SessionID)
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.chatHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	resp, err := s.orch.HandleMessage(r.Context(), req)
	if err != nil {
		slog.Error("Server.chatHandler: turn failed", "error", err, "sessionID", req.SessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process message"))
		return
	}

	slog.Info("Server.chatHandler: turn processed", "sessionID", resp.SessionID, "mode", resp.Mode, "topic", resp.Topic)
	writeJSONResponse(w, http.StatusOK, models.Success(resp))
}

// getSessionHandler handles GET /sessions/{id}.
func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	slog.Debug("Server.getSessionHandler: fetching session", "sessionID", sessionID)

	state, err := s.orch.GetSession(sessionID)
	if err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
			return
		}
		slog.Error("Server.getSessionHandler: failed", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to get session"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sessionSnapshot{
		Session:         state,
		SuggestedTopics: topics.SuggestedForMode(state.Mode),
	}))
}

// putBirthDetailsHandler handles PUT /sessions/{id}/birth-details.
func (s *Server) putBirthDetailsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	sessionID := r.PathValue("id")
	slog.Debug("Server.putBirthDetailsHandler: updating birth details", "sessionID", sessionID)

	var details models.BirthDetails
	if err := json.NewDecoder(r.Body).Decode(&details); err != nil {
		slog.Warn("Server.putBirthDetailsHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	state, err := s.orch.SetBirthDetails(sessionID, details)
	if err != nil {
		if errors.Is(err, models.ErrMissingBirthFields) {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		slog.Error("Server.putBirthDetailsHandler: failed", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to update birth details"))
		return
	}

	slog.Info("Server.putBirthDetailsHandler: birth details updated", "sessionID", sessionID)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Birth details updated successfully", state))
}

// deleteSessionHandler handles DELETE /sessions/{id}.
func (s *Server) deleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	slog.Debug("Server.deleteSessionHandler: resetting session", "sessionID", sessionID)

	if err := s.orch.ResetSession(sessionID); err != nil {
		slog.Error("Server.deleteSessionHandler: failed", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to reset session"))
		return
	}

	slog.Info("Server.deleteSessionHandler: session reset", "sessionID", sessionID)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Session reset successfully", nil))
}

// healthHandler handles GET /health.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"service": "niro"}))
}
