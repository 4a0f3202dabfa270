// Package lexical provides the Meilisearch-backed full-text index used for
// keyword memory recall.
package lexical

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

// Document is an indexed record. Fields are schemaless on the Meilisearch
// side; writers and readers agree on field names by convention.
type Document map[string]any

// IndexSettings configures which fields are searchable, filterable, and
// sortable for an index.
type IndexSettings struct {
	Searchable []string `json:"searchableAttributes,omitempty"`
	Filterable []string `json:"filterableAttributes,omitempty"`
	Sortable   []string `json:"sortableAttributes,omitempty"`
}

// Config holds Meilisearch connection settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client is a Meilisearch HTTP API client.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     logger.Logger
}

// NewClient creates a Meilisearch client.
func NewClient(cfg Config, log logger.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:7700"
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

// EnsureIndex creates the index if missing and applies its settings.
// Meilisearch processes both asynchronously; the tasks are fire-and-forget
// since indexing tolerates eventual consistency.
func (c *Client) EnsureIndex(ctx context.Context, uid, primaryKey string, settings IndexSettings) error {
	status, _, err := c.do(ctx, http.MethodGet, "/indexes/"+uid, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		body := map[string]any{"uid": uid, "primaryKey": primaryKey}
		status, respBody, err := c.do(ctx, http.MethodPost, "/indexes", body)
		if err != nil {
			return err
		}
		if status >= http.StatusBadRequest {
			return fmt.Errorf("create index %s returned %d: %s", uid, status, respBody)
		}
		c.log.Info("created lexical index", "index", uid)
	}

	status, respBody, err := c.do(ctx, http.MethodPatch, "/indexes/"+uid+"/settings", settings)
	if err != nil {
		return err
	}
	if status >= http.StatusBadRequest {
		return fmt.Errorf("update settings for %s returned %d: %s", uid, status, respBody)
	}
	return nil
}

// AddDocuments indexes documents, replacing any with matching primary keys.
func (c *Client) AddDocuments(ctx context.Context, uid string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	status, respBody, err := c.do(ctx, http.MethodPost, "/indexes/"+uid+"/documents", docs)
	if err != nil {
		return err
	}
	if status >= http.StatusBadRequest {
		return fmt.Errorf("add documents to %s returned %d: %s", uid, status, respBody)
	}
	return nil
}

// DeleteDocuments removes documents by primary key.
func (c *Client) DeleteDocuments(ctx context.Context, uid string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	status, respBody, err := c.do(ctx, http.MethodPost, "/indexes/"+uid+"/documents/delete-batch", ids)
	if err != nil {
		return err
	}
	if status >= http.StatusBadRequest {
		return fmt.Errorf("delete documents from %s returned %d: %s", uid, status, respBody)
	}
	return nil
}

type searchRequest struct {
	Query  string   `json:"q"`
	Limit  int      `json:"limit"`
	Filter string   `json:"filter,omitempty"`
	Sort   []string `json:"sort,omitempty"`
}

type searchResponse struct {
	Hits []Document `json:"hits"`
}

// Search runs a full-text query. The filter uses Meilisearch filter syntax,
// e.g. `persona_id = 'aria'`.
func (c *Client) Search(ctx context.Context, uid, query string, limit int, filter string) ([]Document, error) {
	req := searchRequest{Query: query, Limit: limit, Filter: filter}
	status, respBody, err := c.do(ctx, http.MethodPost, "/indexes/"+uid+"/search", req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("search %s returned %d: %s", uid, status, respBody)
	}

	var parsed searchResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return parsed.Hits, nil
}

// Healthy reports whether the Meilisearch server answers its health probe.
func (c *Client) Healthy(ctx context.Context) bool {
	status, _, err := c.do(ctx, http.MethodGet, "/health", nil)
	return err == nil && status == http.StatusOK
}

func (c *Client) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal meilisearch request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build meilisearch request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("meilisearch %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return 0, nil, fmt.Errorf("read meilisearch response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}
