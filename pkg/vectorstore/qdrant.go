// Package vectorstore provides the Qdrant-backed vector index used for
// semantic memory recall.
package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/azera-ai/azera/pkg/logger"
)

// Point is a vector with its payload, ready for upsert.
type Point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload,omitempty"`
}

// ScoredPoint is a search hit.
type ScoredPoint struct {
	ID      string         `json:"id"`
	Score   float32        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// MatchCondition matches a payload field against an exact value.
type MatchCondition struct {
	Key   string `json:"key"`
	Match struct {
		Value any `json:"value"`
	} `json:"match"`
}

// Match builds a MatchCondition for key == value.
func Match(key string, value any) MatchCondition {
	c := MatchCondition{Key: key}
	c.Match.Value = value
	return c
}

// Filter restricts a search by payload conditions.
type Filter struct {
	Must    []MatchCondition `json:"must,omitempty"`
	MustNot []MatchCondition `json:"must_not,omitempty"`
}

// Config holds Qdrant connection settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client is a Qdrant HTTP API client.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     logger.Logger
}

// NewClient creates a Qdrant client.
func NewClient(cfg Config, log logger.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:6333"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if log == nil {
		log = logger.Global()
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
		log:     log,
	}
}

// EnsureCollection creates a cosine-distance collection if it does not
// already exist.
func (c *Client) EnsureCollection(ctx context.Context, name string, dimension int) error {
	status, _, err := c.do(ctx, http.MethodGet, "/collections/"+name, nil)
	if err != nil {
		return err
	}
	if status == http.StatusOK {
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	status, respBody, err := c.do(ctx, http.MethodPut, "/collections/"+name, body)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("create collection %s returned %d: %s", name, status, respBody)
	}
	c.log.Info("created vector collection", "collection", name, "dimension", dimension)
	return nil
}

// Upsert writes points into a collection.
func (c *Client) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	body := map[string]any{"points": points}
	status, respBody, err := c.do(ctx, http.MethodPut,
		"/collections/"+collection+"/points?wait=true", body)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("upsert into %s returned %d: %s", collection, status, respBody)
	}
	return nil
}

type searchRequest struct {
	Vector         []float32 `json:"vector"`
	Limit          int       `json:"limit"`
	WithPayload    bool      `json:"with_payload"`
	Filter         *Filter   `json:"filter,omitempty"`
	ScoreThreshold float32   `json:"score_threshold,omitempty"`
}

type searchResponse struct {
	Result []ScoredPoint `json:"result"`
}

// Search runs a similarity query. A zero scoreThreshold disables server
// side score filtering.
func (c *Client) Search(ctx context.Context, collection string, vector []float32, limit int, filter *Filter, scoreThreshold float32) ([]ScoredPoint, error) {
	req := searchRequest{
		Vector:         vector,
		Limit:          limit,
		WithPayload:    true,
		Filter:         filter,
		ScoreThreshold: scoreThreshold,
	}
	status, respBody, err := c.do(ctx, http.MethodPost,
		"/collections/"+collection+"/points/search", req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("search %s returned %d: %s", collection, status, respBody)
	}

	var parsed searchResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return parsed.Result, nil
}

// DeletePoints removes points by id.
func (c *Client) DeletePoints(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	body := map[string]any{"points": ids}
	status, respBody, err := c.do(ctx, http.MethodPost,
		"/collections/"+collection+"/points/delete?wait=true", body)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("delete from %s returned %d: %s", collection, status, respBody)
	}
	return nil
}

// Healthy reports whether the Qdrant server answers its readiness probe.
func (c *Client) Healthy(ctx context.Context) bool {
	status, _, err := c.do(ctx, http.MethodGet, "/readyz", nil)
	return err == nil && status == http.StatusOK
}

func (c *Client) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal qdrant request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build qdrant request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("qdrant %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return 0, nil, fmt.Errorf("read qdrant response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}
