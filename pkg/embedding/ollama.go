package embedding

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/azera-ai/azera/pkg/logger"
)

// DefaultDimension matches the nomic-embed-text model.
const DefaultDimension = 768

// OllamaConfig holds settings for the Ollama embedding endpoint.
type OllamaConfig struct {
	BaseURL   string
	Model     string
	Dimension int
	Timeout   time.Duration
}

// OllamaProvider produces embeddings via the Ollama /api/embeddings endpoint.
// When Ollama is unreachable or returns garbage it degrades to a
// deterministic hash-derived vector instead of failing, so retrieval keeps
// working without the model.
type OllamaProvider struct {
	baseURL   string
	model     string
	dimension int
	client    *http.Client
	log       logger.Logger
}

// NewOllamaProvider creates a provider with sane defaults for unset fields.
func NewOllamaProvider(cfg OllamaConfig, log logger.Logger) *OllamaProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = DefaultDimension
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if log == nil {
		log = logger.Global()
	}
	return &OllamaProvider{
		baseURL:   cfg.BaseURL,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		client:    &http.Client{Timeout: cfg.Timeout},
		log:       log,
	}
}

// Dimension returns the vector width.
func (p *OllamaProvider) Dimension() int {
	return p.dimension
}

type embeddingsRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingsResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed returns a vector for text. The returned error is always nil; model
// failures are logged and answered with the fallback vector.
func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := p.embedRemote(ctx, text)
	if err != nil {
		p.log.WarnContext(ctx, "embedding model unavailable, using fallback",
			"model", p.model,
			"error", err,
		)
		return FallbackVector(text, p.dimension), nil
	}
	return vec, nil
}

func (p *OllamaProvider) embedRemote(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingsRequest{Model: p.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal embeddings request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embeddings request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embeddings request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embeddings request returned %d: %s", resp.StatusCode, msg)
	}

	var parsed embeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode embeddings response: %w", err)
	}
	if len(parsed.Embedding) == 0 {
		return nil, fmt.Errorf("embeddings response contained no vector")
	}
	return parsed.Embedding, nil
}

// FallbackVector derives a deterministic pseudo-embedding from the text's
// SHA-256 digest, with components in [-1, 1]. Texts map to stable vectors
// so cache hits and echo checks behave the same with or without the model.
func FallbackVector(text string, dimension int) []float32 {
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, dimension)
	for i := range vec {
		b := sum[i%len(sum)]
		vec[i] = (float32(b)/255.0)*2.0 - 1.0
	}
	return vec
}
