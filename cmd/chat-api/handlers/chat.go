package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/cartline-ai/cartline/internal/chat"
	"github.com/cartline-ai/cartline/internal/observability"
)

// ChatHandler handles conversational requests.
type ChatHandler struct {
	logger   *observability.Logger
	composer *chat.Composer
}

// NewChatHandler creates a chat handler.
func NewChatHandler(logger *observability.Logger, composer *chat.Composer) *ChatHandler {
	return &ChatHandler{logger: logger, composer: composer}
}

// ChatRequestDTO is the chat API request.
type ChatRequestDTO struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponseDTO is the chat API response. The caller must persist and
// resend session_id for conversational continuity.
type ChatResponseDTO struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
	Intent    string `json:"intent"`
}

// Message handles POST /api/v1/chat.
func (h *ChatHandler) Message(w http.ResponseWriter, r *http.Request) {
	var req ChatRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required", "")
		return
	}

	reply := h.composer.Handle(r.Context(), req.Message, req.SessionID)

	writeJSON(w, http.StatusOK, ChatResponseDTO{
		Response:  reply.Text,
		SessionID: reply.SessionID,
		Intent:    string(reply.Intent),
	})
}
