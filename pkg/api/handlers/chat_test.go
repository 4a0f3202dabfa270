package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azera-ai/azera/pkg/agent"
	"github.com/azera-ai/azera/pkg/cache"
	"github.com/azera-ai/azera/pkg/llm"
	"github.com/azera-ai/azera/pkg/logger"
	"github.com/azera-ai/azera/pkg/memory"
	"github.com/azera-ai/azera/pkg/mental"
	"github.com/azera-ai/azera/pkg/session"
	"github.com/azera-ai/azera/pkg/storage"
	memstore "github.com/azera-ai/azera/pkg/storage/memory"
)

type fakeLLM struct {
	mu           sync.Mutex
	reply        string
	chunks       []string
	moodLabel    string
	completeErr  error
	moodErr      error
	lastMessages []llm.Message
}

func (f *fakeLLM) Complete(_ context.Context, messages []llm.Message) (*llm.Completion, error) {
	f.mu.Lock()
	f.lastMessages = messages
	f.mu.Unlock()
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	return &llm.Completion{Content: f.reply, Model: "test-model", PromptTokens: 12, CompletionTokens: 7}, nil
}

func (f *fakeLLM) CompleteStream(ctx context.Context, messages []llm.Message, emit func(string) error) (*llm.Completion, error) {
	f.mu.Lock()
	f.lastMessages = messages
	f.mu.Unlock()
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	chunks := f.chunks
	if len(chunks) == 0 {
		chunks = []string{f.reply}
	}
	var full strings.Builder
	for _, c := range chunks {
		full.WriteString(c)
		if err := emit(c); err != nil {
			return nil, err
		}
	}
	return &llm.Completion{Content: full.String(), Model: "test-model", PromptTokens: 12, CompletionTokens: 7}, nil
}

func (f *fakeLLM) InferMood(context.Context, string) (string, error) {
	if f.moodErr != nil {
		return "", f.moodErr
	}
	return f.moodLabel, nil
}

func (f *fakeLLM) Model() string { return "test-model" }

func (f *fakeLLM) ListModels(context.Context) ([]llm.ModelInfo, error) {
	return []llm.ModelInfo{{Name: "test-model"}}, nil
}

func (f *fakeLLM) systemPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.lastMessages) == 0 {
		return ""
	}
	return f.lastMessages[0].Content
}

type fakeRetriever struct {
	mu      sync.Mutex
	results []memory.Retrieved
	lastReq memory.Request
}

func (f *fakeRetriever) Retrieve(_ context.Context, req memory.Request) []memory.Retrieved {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastReq = req
	return f.results
}

type fakeMemoryWriter struct {
	mu     sync.Mutex
	stored []memory.Memory
	err    error
}

func (f *fakeMemoryWriter) Store(_ context.Context, m memory.Memory) (memory.Memory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return m, f.err
	}
	f.stored = append(f.stored, m)
	return m, nil
}

func (f *fakeMemoryWriter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stored)
}

type fakeQueue struct {
	mu     sync.Mutex
	events []agent.InputEvent
}

func (f *fakeQueue) Enqueue(ev agent.InputEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakeQueue) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func testLogger() logger.Logger {
	return logger.New(&logger.Config{Level: logger.ErrorLevel, Format: "text", Output: "stderr"})
}

type chatEnv struct {
	store     storage.Storage
	cache     *cache.MemoryStore
	mental    *mental.Store
	session   *session.Store
	llm       *fakeLLM
	retriever *fakeRetriever
	writer    *fakeMemoryWriter
	queue     *fakeQueue
	handler   *ChatHandler
}

func newChatEnv(t *testing.T) *chatEnv {
	t.Helper()

	env := &chatEnv{
		store:     memstore.NewMemoryStorage(),
		cache:     cache.NewMemoryStore(),
		llm:       &fakeLLM{reply: "Hello there!", moodLabel: "happy"},
		retriever: &fakeRetriever{},
		writer:    &fakeMemoryWriter{},
		queue:     &fakeQueue{},
	}
	env.mental = mental.NewStore(env.cache)
	env.session = session.NewStore(env.cache)
	env.handler = NewChatHandler(
		ChatConfig{HistoryLimit: 10, RecallLimit: 5},
		ChatDeps{
			Store:     env.store,
			Mental:    env.mental,
			Session:   env.session,
			Retriever: env.retriever,
			Writer:    env.writer,
			LLM:       env.llm,
			Cache:     env.cache,
			Agent:     env.queue,
			Logger:    testLogger(),
		},
	)
	return env
}

func (env *chatEnv) seedPersonaAndChat(t *testing.T) (*storage.Persona, *storage.Chat) {
	t.Helper()
	ctx := context.Background()

	p := &storage.Persona{
		ID:           "aria",
		Name:         "Aria",
		SystemPrompt: "You are Aria, a thoughtful companion.",
		Mood:         mental.DefaultMood,
	}
	require.NoError(t, env.store.SavePersona(ctx, p))

	c := &storage.Chat{ID: "chat-1", PersonaID: "aria", Title: "evening"}
	require.NoError(t, env.store.SaveChat(ctx, c))
	return p, c
}

func chatRouter(h *ChatHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/v1/chats", h.Create)
	r.Get("/api/v1/personas/{personaID}/chats", h.List)
	r.Get("/api/v1/chats/{chatID}", h.Get)
	r.Delete("/api/v1/chats/{chatID}", h.Delete)
	r.Get("/api/v1/chats/{chatID}/messages", h.Messages)
	r.Post("/api/v1/chats/{chatID}/messages", h.Send)
	r.Get("/ws/chat/{chatID}", h.Stream)
	return r
}

func TestChatCreate(t *testing.T) {
	env := newChatEnv(t)
	env.seedPersonaAndChat(t)
	router := chatRouter(env.handler)

	body := bytes.NewBufferString(`{"persona_id":"aria","title":"late night"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/chats", body))

	require.Equal(t, http.StatusCreated, rec.Code)
	var c storage.Chat
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&c))
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "aria", c.PersonaID)
	assert.Equal(t, "late night", c.Title)

	_, err := env.store.GetChat(context.Background(), c.ID)
	assert.NoError(t, err)
}

func TestChatCreateUnknownPersona(t *testing.T) {
	env := newChatEnv(t)
	router := chatRouter(env.handler)

	body := bytes.NewBufferString(`{"persona_id":"ghost"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/chats", body))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatCreateMissingPersonaID(t *testing.T) {
	env := newChatEnv(t)
	router := chatRouter(env.handler)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/chats", bytes.NewBufferString(`{}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatSendExchange(t *testing.T) {
	env := newChatEnv(t)
	_, c := env.seedPersonaAndChat(t)
	router := chatRouter(env.handler)

	body := bytes.NewBufferString(`{"content":"Hi, how are you?"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/chats/chat-1/messages", body))

	require.Equal(t, http.StatusOK, rec.Code)
	var reply storage.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&reply))
	assert.Equal(t, llm.RoleAssistant, reply.Role)
	assert.Equal(t, "Hello there!", reply.Content)
	assert.Equal(t, "happy", reply.Mood)
	assert.Equal(t, 12, reply.PromptTokens)
	assert.Equal(t, 7, reply.CompletionTokens)

	ctx := context.Background()

	msgs, err := env.store.ListMessages(ctx, c.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, llm.RoleUser, msgs[0].Role)
	assert.Equal(t, "Hi, how are you?", msgs[0].Content)

	st, err := env.mental.Get(ctx, "aria")
	require.NoError(t, err)
	assert.Equal(t, "happy", st.Mood)
	assert.InDelta(t, 1.0-exchangeEnergyCost, st.Energy, 1e-9)
	assert.False(t, st.LastInteraction.IsZero())

	p, err := env.store.GetPersona(ctx, "aria")
	require.NoError(t, err)
	assert.Equal(t, "happy", p.Mood)

	assert.Equal(t, 1, env.queue.count())

	// Conversation archiving runs in the background.
	require.Eventually(t, func() bool { return env.writer.count() == 2 }, 2*time.Second, 10*time.Millisecond)
	env.writer.mu.Lock()
	contents := []string{env.writer.stored[0].Content, env.writer.stored[1].Content}
	types := []string{env.writer.stored[0].Type, env.writer.stored[1].Type}
	chatIDs := []string{env.writer.stored[0].ChatID, env.writer.stored[1].ChatID}
	env.writer.mu.Unlock()
	assert.Contains(t, contents, "User: Hi, how are you?")
	assert.Contains(t, contents, "Aria: Hello there!")
	assert.Equal(t, []string{memory.TypeConversation, memory.TypeConversation}, types)
	assert.Equal(t, []string{"chat-1", "chat-1"}, chatIDs, "archived turns carry the chat scope")

	require.Eventually(t, func() bool {
		cached, found, err := env.cache.Get(ctx, latestResponsePrefix+c.ID)
		return err == nil && found && cached == "Hello there!"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestChatSendPromptCarriesContext(t *testing.T) {
	env := newChatEnv(t)
	env.seedPersonaAndChat(t)
	env.retriever.results = []memory.Retrieved{
		{Title: "Favorite tea", Content: "The user prefers jasmine tea.", Source: memory.SourceSemantic, Score: 0.9},
	}
	router := chatRouter(env.handler)

	body := bytes.NewBufferString(`{"content":"What should I drink tonight?"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/chats/chat-1/messages", body))
	require.Equal(t, http.StatusOK, rec.Code)

	prompt := env.llm.systemPrompt()
	assert.Contains(t, prompt, "You are Aria")
	assert.Contains(t, prompt, "Your current mood is")
	assert.Contains(t, prompt, "Favorite tea: The user prefers jasmine tea.")

	env.retriever.mu.Lock()
	req := env.retriever.lastReq
	env.retriever.mu.Unlock()
	assert.Equal(t, "aria", req.PersonaID)
	assert.Equal(t, "What should I drink tonight?", req.Query)
	assert.Equal(t, "chat-1", req.ExcludeChatID, "recall must not surface the asking chat")
	assert.Equal(t, 5, req.Limit)
}

func TestChatSendMoodInferenceFailureKeepsCurrentMood(t *testing.T) {
	env := newChatEnv(t)
	env.seedPersonaAndChat(t)
	env.llm.moodErr = errors.New("model busy")
	router := chatRouter(env.handler)

	body := bytes.NewBufferString(`{"content":"Hello"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/chats/chat-1/messages", body))

	require.Equal(t, http.StatusOK, rec.Code)
	var reply storage.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&reply))
	assert.Equal(t, mental.DefaultMood, reply.Mood)
}

func TestChatSendModelUnavailable(t *testing.T) {
	env := newChatEnv(t)
	env.seedPersonaAndChat(t)
	env.llm.completeErr = errors.New("connection refused")
	router := chatRouter(env.handler)

	body := bytes.NewBufferString(`{"content":"Hello"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/chats/chat-1/messages", body))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestChatSendChatNotFound(t *testing.T) {
	env := newChatEnv(t)
	router := chatRouter(env.handler)

	body := bytes.NewBufferString(`{"content":"Hello"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/chats/nope/messages", body))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatSendEmptyContent(t *testing.T) {
	env := newChatEnv(t)
	env.seedPersonaAndChat(t)
	router := chatRouter(env.handler)

	body := bytes.NewBufferString(`{"content":"   "}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/chats/chat-1/messages", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatListAndDelete(t *testing.T) {
	env := newChatEnv(t)
	env.seedPersonaAndChat(t)
	router := chatRouter(env.handler)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/personas/aria/chats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Chats []*storage.Chat `json:"chats"`
		Total int             `json:"total"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&listed))
	assert.Equal(t, 1, listed.Total)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/chats/chat-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/chats/chat-1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatMessagesLimit(t *testing.T) {
	env := newChatEnv(t)
	_, c := env.seedPersonaAndChat(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		require.NoError(t, env.store.AppendMessage(ctx, &storage.Message{
			ID:        uuidLike(i),
			ChatID:    c.ID,
			Role:      llm.RoleUser,
			Content:   "m",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	router := chatRouter(env.handler)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/chats/chat-1/messages?limit=4", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var listed struct {
		Messages []*storage.Message `json:"messages"`
		Total    int                `json:"total"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&listed))
	assert.Equal(t, 4, listed.Total)
}

func uuidLike(i int) string {
	return "msg-" + string(rune('a'+i))
}

func TestChatStreamWebsocket(t *testing.T) {
	env := newChatEnv(t)
	env.seedPersonaAndChat(t)
	env.llm.chunks = []string{"Hel", "lo ", "there!"}

	srv := httptest.NewServer(chatRouter(env.handler))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat/chat-1"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(wsInbound{Content: "Hi!"}))

	var streamed strings.Builder
	for {
		var out wsOutbound
		require.NoError(t, conn.ReadJSON(&out))
		if out.Type == "chunk" {
			streamed.WriteString(out.Content)
			continue
		}
		require.Equal(t, "done", out.Type)
		final, ok := out.Message.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "Hello there!", final["content"])
		break
	}
	assert.Equal(t, "Hello there!", streamed.String())
}
