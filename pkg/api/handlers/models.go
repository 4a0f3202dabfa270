package handlers

import (
	"context"
	"net/http"

	"github.com/azera-ai/azera/pkg/api/response"
	"github.com/azera-ai/azera/pkg/llm"
	"github.com/azera-ai/azera/pkg/logger"
)

// modelLister reports models available on the LLM backend.
type modelLister interface {
	ListModels(ctx context.Context) ([]llm.ModelInfo, error)
	Model() string
}

// ModelsHandler handles model discovery endpoints.
type ModelsHandler struct {
	llm modelLister
	log logger.Logger
}

// NewModelsHandler creates a models handler.
func NewModelsHandler(client modelLister, log logger.Logger) *ModelsHandler {
	return &ModelsHandler{llm: client, log: log}
}

// List handles GET /api/v1/models
func (h *ModelsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	models, err := h.llm.ListModels(ctx)
	if err != nil {
		h.log.Error("Failed to list models", "error", err)
		response.Error(w, http.StatusServiceUnavailable, response.ErrCodeServiceUnavailable, "Model backend unavailable", getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"models":  models,
		"default": h.llm.Model(),
	})
}
