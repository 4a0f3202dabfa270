package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/azera-ai/azera/pkg/agent"
	"github.com/azera-ai/azera/pkg/api/response"
	"github.com/azera-ai/azera/pkg/logger"
	"github.com/azera-ai/azera/pkg/mental"
	"github.com/azera-ai/azera/pkg/storage"
)

// enqueuer hands interaction events to the background loop.
type enqueuer interface {
	Enqueue(ev agent.InputEvent)
}

// StateHandler exposes persona mental state and the signal queue.
type StateHandler struct {
	store  storage.Storage
	mental *mental.Store
	agent  enqueuer
	log    logger.Logger
}

// NewStateHandler creates a state handler.
func NewStateHandler(store storage.Storage, mentalStore *mental.Store, ag enqueuer, log logger.Logger) *StateHandler {
	return &StateHandler{
		store:  store,
		mental: mentalStore,
		agent:  ag,
		log:    log,
	}
}

// Get handles GET /api/v1/personas/{personaID}/state
func (h *StateHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	personaID := chi.URLParam(r, "personaID")

	if _, err := h.store.GetPersona(ctx, personaID); err != nil {
		writePersonaError(w, err, getRequestID(ctx))
		return
	}

	st, err := h.mental.Get(ctx, personaID)
	if err != nil {
		h.log.Error("Failed to load mental state", "persona_id", personaID, "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "Failed to load mental state", getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, st)
}

type signalRequest struct {
	ChatID  string `json:"chat_id,omitempty"`
	Message string `json:"message"`
}

// Signal handles POST /api/v1/personas/{personaID}/signal. The event is
// queued for the next background tick.
func (h *StateHandler) Signal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	personaID := chi.URLParam(r, "personaID")

	if _, err := h.store.GetPersona(ctx, personaID); err != nil {
		writePersonaError(w, err, getRequestID(ctx))
		return
	}

	var req signalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Invalid request body", getRequestID(ctx))
		return
	}
	if req.Message == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, "Message is required", getRequestID(ctx))
		return
	}

	h.agent.Enqueue(agent.InputEvent{
		PersonaID: personaID,
		ChatID:    req.ChatID,
		Message:   req.Message,
	})

	response.JSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}
