package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteStripsThinking(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, "test-model", req.Model)

		json.NewEncoder(w).Encode(chatResponse{
			Model:           "test-model",
			Message:         Message{Role: RoleAssistant, Content: "<think>reasoning</think>final answer"},
			Done:            true,
			PromptEvalCount: 12,
			EvalCount:       34,
		})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Model: "test-model"}, nil)

	completion, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "final answer", completion.Content)
	assert.Equal(t, 12, completion.PromptTokens)
	assert.Equal(t, 34, completion.CompletionTokens)
}

func TestCompleteStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		chunks := []chatResponse{
			{Message: Message{Content: "<think>hid"}},
			{Message: Message{Content: "den</think>Hel"}},
			{Message: Message{Content: "lo there"}},
			{Done: true, PromptEvalCount: 5, EvalCount: 9},
		}
		for _, ch := range chunks {
			line, _ := json.Marshal(ch)
			fmt.Fprintf(w, "%s\n", line)
		}
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, nil)

	var streamed string
	completion, err := c.CompleteStream(context.Background(),
		[]Message{{Role: RoleUser, Content: "hi"}},
		func(chunk string) error {
			streamed += chunk
			return nil
		})
	require.NoError(t, err)

	assert.Equal(t, "Hello there", streamed)
	assert.Equal(t, "Hello there", completion.Content)
	assert.Equal(t, 5, completion.PromptTokens)
	assert.Equal(t, 9, completion.CompletionTokens)
}

func TestCompleteStreamConsumerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		line, _ := json.Marshal(chatResponse{Message: Message{Content: "data"}})
		fmt.Fprintf(w, "%s\n", line)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, nil)

	_, err := c.CompleteStream(context.Background(),
		[]Message{{Role: RoleUser, Content: "hi"}},
		func(chunk string) error { return fmt.Errorf("client went away") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client went away")
}

func TestCompleteServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, nil)

	_, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestInferMood(t *testing.T) {
	var gotOptions chatOptions
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotOptions = req.Options

		json.NewEncoder(w).Encode(chatResponse{
			Message: Message{Role: RoleAssistant, Content: " Curious.\n"},
			Done:    true,
		})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, nil)

	mood, err := c.InferMood(context.Background(), "tell me about black holes")
	require.NoError(t, err)
	assert.Equal(t, "curious", mood)

	// Classification runs cold and short, independent of the chat
	// temperature.
	assert.Equal(t, moodTemperature, gotOptions.Temperature)
	assert.Equal(t, moodMaxTokens, gotOptions.NumPredict)
}

func TestCompleteUsesConfiguredTemperature(t *testing.T) {
	var gotOptions chatOptions
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotOptions = req.Options

		json.NewEncoder(w).Encode(chatResponse{
			Message: Message{Role: RoleAssistant, Content: "hi"},
			Done:    true,
		})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Temperature: 0.9}, nil)

	_, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, 0.9, gotOptions.Temperature)
	assert.Zero(t, gotOptions.NumPredict, "normal chat completions are not capped")
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		json.NewEncoder(w).Encode(tagsResponse{
			Models: []ModelInfo{
				{Name: "llama3.2", Size: 2019393189},
				{Name: "nomic-embed-text", Size: 274302450},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, nil)

	models, err := c.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "llama3.2", models[0].Name)
}
