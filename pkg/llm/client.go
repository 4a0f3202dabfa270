// Package llm talks to an Ollama server for chat completions.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/azera-ai/azera/pkg/logger"
)

// Role constants for chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completion is the result of a non-streaming chat call.
type Completion struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// ModelInfo describes a model known to the Ollama server.
type ModelInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Config holds Ollama chat settings.
type Config struct {
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// Client is an Ollama chat API client.
type Client struct {
	baseURL     string
	model       string
	temperature float64
	client      *http.Client
	log         logger.Logger
}

// NewClient creates a client with defaults for unset fields.
func NewClient(cfg Config, log logger.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "llama3.2"
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.7
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if log == nil {
		log = logger.Global()
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: cfg.Timeout},
		log:         log,
	}
}

// Model returns the configured default model name.
func (c *Client) Model() string {
	return c.model
}

type chatRequest struct {
	Model    string      `json:"model"`
	Messages []Message   `json:"messages"`
	Stream   bool        `json:"stream"`
	Options  chatOptions `json:"options"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// Mood classification wants a deterministic one-word answer, not prose.
const (
	moodTemperature = 0.1
	moodMaxTokens   = 10
)

type chatResponse struct {
	Model           string  `json:"model"`
	Message         Message `json:"message"`
	Done            bool    `json:"done"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
}

// Complete performs a non-streaming chat completion. Reasoning-model think
// blocks are stripped from the returned content.
func (c *Client) Complete(ctx context.Context, messages []Message) (*Completion, error) {
	return c.complete(ctx, messages, chatOptions{Temperature: c.temperature})
}

func (c *Client) complete(ctx context.Context, messages []Message, opts chatOptions) (*Completion, error) {
	resp, err := c.postChat(ctx, chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
		Options:  opts,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}

	return &Completion{
		Content:          StripThinking(parsed.Message.Content),
		Model:            parsed.Model,
		PromptTokens:     parsed.PromptEvalCount,
		CompletionTokens: parsed.EvalCount,
	}, nil
}

// CompleteStream performs a streaming chat completion, invoking emit for
// each visible content chunk. Think blocks are filtered out of the stream.
// The final completion carries the full filtered content and token counts.
func (c *Client) CompleteStream(ctx context.Context, messages []Message, emit func(chunk string) error) (*Completion, error) {
	resp, err := c.postChat(ctx, chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   true,
		Options:  chatOptions{Temperature: c.temperature},
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	filter := newThinkFilter()
	var full strings.Builder
	result := &Completion{Model: c.model}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk chatResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			c.log.WarnContext(ctx, "skipping malformed stream chunk", "error", err)
			continue
		}

		if visible := filter.feed(chunk.Message.Content); visible != "" {
			full.WriteString(visible)
			if err := emit(visible); err != nil {
				return nil, fmt.Errorf("stream consumer: %w", err)
			}
		}

		if chunk.Done {
			result.PromptTokens = chunk.PromptEvalCount
			result.CompletionTokens = chunk.EvalCount
			if chunk.Model != "" {
				result.Model = chunk.Model
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read chat stream: %w", err)
	}

	if tail := filter.flush(); tail != "" {
		full.WriteString(tail)
		if err := emit(tail); err != nil {
			return nil, fmt.Errorf("stream consumer: %w", err)
		}
	}

	result.Content = strings.TrimSpace(full.String())
	return result, nil
}

func (c *Client) postChat(ctx context.Context, reqBody chatRequest) (*http.Response, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("chat request returned %d: %s", resp.StatusCode, msg)
	}
	return resp, nil
}

// InferMood asks the model to classify the emotional tone of a reply. The
// answer is lowercased and trimmed to a single word; callers are expected
// to normalize it against their known mood set.
func (c *Client) InferMood(ctx context.Context, text string) (string, error) {
	prompt := "Classify the emotional tone of the following message with exactly one word " +
		"from this list: happy, content, thoughtful, melancholy, curious, excited, calm, concerned.\n\n" +
		"Message: " + text + "\n\nAnswer with only the single word."

	completion, err := c.complete(ctx, []Message{{Role: RoleUser, Content: prompt}},
		chatOptions{Temperature: moodTemperature, NumPredict: moodMaxTokens})
	if err != nil {
		return "", err
	}

	word := strings.ToLower(strings.TrimSpace(completion.Content))
	if i := strings.IndexFunc(word, func(r rune) bool { return r == ' ' || r == '\n' || r == '.' }); i > 0 {
		word = word[:i]
	}
	return word, nil
}

type tagsResponse struct {
	Models []ModelInfo `json:"models"`
}

// ListModels returns the models available on the Ollama server.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("build tags request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tags request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tags request returned %d: %s", resp.StatusCode, msg)
	}

	var parsed tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode tags response: %w", err)
	}
	return parsed.Models, nil
}
