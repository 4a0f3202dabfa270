package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/azera-ai/azera/pkg/api/response"
	"github.com/azera-ai/azera/pkg/logger"
	"github.com/azera-ai/azera/pkg/mental"
	"github.com/azera-ai/azera/pkg/storage"
)

// PersonaHandler handles persona CRUD endpoints.
type PersonaHandler struct {
	store  storage.Storage
	mental *mental.Store
	log    logger.Logger
}

// NewPersonaHandler creates a persona handler.
func NewPersonaHandler(store storage.Storage, mentalStore *mental.Store, log logger.Logger) *PersonaHandler {
	return &PersonaHandler{
		store:  store,
		mental: mentalStore,
		log:    log,
	}
}

type personaRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	SystemPrompt string `json:"system_prompt"`
}

// Create handles POST /api/v1/personas
func (h *PersonaHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req personaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Invalid request body", getRequestID(ctx))
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, "Name is required", getRequestID(ctx))
		return
	}
	if strings.TrimSpace(req.SystemPrompt) == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, "System prompt is required", getRequestID(ctx))
		return
	}

	p := &storage.Persona{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Description:  req.Description,
		SystemPrompt: req.SystemPrompt,
		Mood:         mental.DefaultMood,
	}
	if err := h.store.SavePersona(ctx, p); err != nil {
		h.log.Error("Failed to create persona", "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "Failed to create persona", getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusCreated, p)
}

// List handles GET /api/v1/personas
func (h *PersonaHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	personas, err := h.store.ListPersonas(ctx)
	if err != nil {
		h.log.Error("Failed to list personas", "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "Failed to list personas", getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"personas": personas,
		"total":    len(personas),
	})
}

// Get handles GET /api/v1/personas/{personaID}
func (h *PersonaHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	personaID := chi.URLParam(r, "personaID")

	p, err := h.store.GetPersona(ctx, personaID)
	if err != nil {
		writePersonaError(w, err, getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, p)
}

// Update handles PUT /api/v1/personas/{personaID}
func (h *PersonaHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	personaID := chi.URLParam(r, "personaID")

	p, err := h.store.GetPersona(ctx, personaID)
	if err != nil {
		writePersonaError(w, err, getRequestID(ctx))
		return
	}

	var req personaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Invalid request body", getRequestID(ctx))
		return
	}

	if req.Name != "" {
		p.Name = req.Name
	}
	if req.Description != "" {
		p.Description = req.Description
	}
	if req.SystemPrompt != "" {
		p.SystemPrompt = req.SystemPrompt
	}

	if err := h.store.SavePersona(ctx, p); err != nil {
		h.log.Error("Failed to update persona", "persona_id", personaID, "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "Failed to update persona", getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, p)
}

// Delete handles DELETE /api/v1/personas/{personaID}
func (h *PersonaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	personaID := chi.URLParam(r, "personaID")

	if err := h.store.DeletePersona(ctx, personaID); err != nil {
		writePersonaError(w, err, getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"deleted": personaID})
}

func writePersonaError(w http.ResponseWriter, err error, requestID string) {
	var notFound *storage.NotFoundError
	if errors.As(err, &notFound) {
		response.Error(w, http.StatusNotFound, response.ErrCodeNotFound, err.Error(), requestID)
		return
	}
	response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, err.Error(), requestID)
}
