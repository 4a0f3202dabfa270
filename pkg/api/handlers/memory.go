package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/azera-ai/azera/pkg/api/response"
	"github.com/azera-ai/azera/pkg/logger"
	"github.com/azera-ai/azera/pkg/memory"
)

// memoryStorer writes long-term memories.
type memoryStorer interface {
	Store(ctx context.Context, m memory.Memory) (memory.Memory, error)
}

// memoryRetriever performs hybrid recall.
type memoryRetriever interface {
	Retrieve(ctx context.Context, req memory.Request) []memory.Retrieved
}

// MemoryHandler handles memory store and recall endpoints.
type MemoryHandler struct {
	writer    memoryStorer
	retriever memoryRetriever
	log       logger.Logger
}

// NewMemoryHandler creates a memory handler.
func NewMemoryHandler(writer memoryStorer, retriever memoryRetriever, log logger.Logger) *MemoryHandler {
	return &MemoryHandler{
		writer:    writer,
		retriever: retriever,
		log:       log,
	}
}

type storeMemoryRequest struct {
	Title   string   `json:"title,omitempty"`
	Content string   `json:"content"`
	Type    string   `json:"memory_type,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// Store handles POST /api/v1/personas/{personaID}/memories
func (h *MemoryHandler) Store(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	personaID := chi.URLParam(r, "personaID")

	var req storeMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Invalid request body", getRequestID(ctx))
		return
	}
	if req.Content == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, "Content is required", getRequestID(ctx))
		return
	}
	if req.Type != "" && !memory.KnownType(req.Type) {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, "Unknown memory type", getRequestID(ctx))
		return
	}

	m, err := h.writer.Store(ctx, memory.Memory{
		PersonaID: personaID,
		Title:     req.Title,
		Content:   req.Content,
		Type:      req.Type,
		Tags:      req.Tags,
	})
	if err != nil {
		h.log.Error("Failed to store memory", "persona_id", personaID, "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "Failed to store memory", getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusCreated, m)
}

// Search handles GET /api/v1/personas/{personaID}/memories/search
func (h *MemoryHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	personaID := chi.URLParam(r, "personaID")

	query := r.URL.Query().Get("q")
	if query == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, "Query parameter 'q' is required", getRequestID(ctx))
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	memType := r.URL.Query().Get("memory_type")
	if memType != "" && !memory.KnownType(memType) {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, "Unknown memory type", getRequestID(ctx))
		return
	}

	results := h.retriever.Retrieve(ctx, memory.Request{
		PersonaID: personaID,
		Query:     query,
		Type:      memType,
		Limit:     limit,
	})

	response.JSON(w, http.StatusOK, map[string]any{
		"memories": results,
		"total":    len(results),
	})
}
