package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/azera-ai/azera/pkg/agent"
	"github.com/azera-ai/azera/pkg/api/response"
	"github.com/azera-ai/azera/pkg/cache"
	"github.com/azera-ai/azera/pkg/llm"
	"github.com/azera-ai/azera/pkg/logger"
	"github.com/azera-ai/azera/pkg/memory"
	"github.com/azera-ai/azera/pkg/mental"
	"github.com/azera-ai/azera/pkg/metrics"
	"github.com/azera-ai/azera/pkg/session"
	"github.com/azera-ai/azera/pkg/storage"
)

// exchangeEnergyCost is how much energy one chat exchange drains.
const exchangeEnergyCost = 0.03

const (
	latestResponsePrefix = "chat:latest_response:"
	latestResponseTTL    = 24 * time.Hour
	tokenCounterPrefix   = "tokens:"
)

// chatModel is the slice of the LLM client the chat path needs.
type chatModel interface {
	Complete(ctx context.Context, messages []llm.Message) (*llm.Completion, error)
	CompleteStream(ctx context.Context, messages []llm.Message, emit func(chunk string) error) (*llm.Completion, error)
	InferMood(ctx context.Context, text string) (string, error)
	Model() string
}

// ChatConfig tunes the chat exchange pipeline.
type ChatConfig struct {
	HistoryLimit int
	RecallLimit  int
}

// ChatDeps carries the chat handler's collaborators.
type ChatDeps struct {
	Store     storage.Storage
	Mental    *mental.Store
	Session   *session.Store
	Retriever memoryRetriever
	Writer    memoryStorer
	LLM       chatModel
	Cache     cache.Store
	Agent     enqueuer
	Metrics   *metrics.Manager
	Logger    logger.Logger
}

// ChatHandler handles conversation endpoints: chat threads, message
// exchanges, and the websocket streaming variant.
type ChatHandler struct {
	cfg       ChatConfig
	store     storage.Storage
	mental    *mental.Store
	session   *session.Store
	retriever memoryRetriever
	writer    memoryStorer
	llm       chatModel
	cache     cache.Store
	agent     enqueuer
	metrics   *metrics.Manager
	log       logger.Logger
	now       func() time.Time
}

// NewChatHandler creates a chat handler.
func NewChatHandler(cfg ChatConfig, deps ChatDeps) *ChatHandler {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 20
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.NoOpManager()
	}
	log := deps.Logger
	if log == nil {
		log = logger.Global()
	}
	return &ChatHandler{
		cfg:       cfg,
		store:     deps.Store,
		mental:    deps.Mental,
		session:   deps.Session,
		retriever: deps.Retriever,
		writer:    deps.Writer,
		llm:       deps.LLM,
		cache:     deps.Cache,
		agent:     deps.Agent,
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
}

// SetClock overrides the time source. Intended for tests.
func (h *ChatHandler) SetClock(now func() time.Time) {
	h.now = now
}

type createChatRequest struct {
	PersonaID string `json:"persona_id"`
	Title     string `json:"title,omitempty"`
}

// Create handles POST /api/v1/chats
func (h *ChatHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Invalid request body", getRequestID(ctx))
		return
	}
	if req.PersonaID == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, "Persona ID is required", getRequestID(ctx))
		return
	}

	if _, err := h.store.GetPersona(ctx, req.PersonaID); err != nil {
		writePersonaError(w, err, getRequestID(ctx))
		return
	}

	c := &storage.Chat{
		ID:        uuid.NewString(),
		PersonaID: req.PersonaID,
		Title:     req.Title,
	}
	if err := h.store.SaveChat(ctx, c); err != nil {
		h.log.Error("Failed to create chat", "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "Failed to create chat", getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusCreated, c)
}

// List handles GET /api/v1/personas/{personaID}/chats
func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	personaID := chi.URLParam(r, "personaID")

	chats, err := h.store.ListChats(ctx, personaID)
	if err != nil {
		h.log.Error("Failed to list chats", "persona_id", personaID, "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "Failed to list chats", getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"chats": chats,
		"total": len(chats),
	})
}

// Get handles GET /api/v1/chats/{chatID}
func (h *ChatHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chatID := chi.URLParam(r, "chatID")

	c, err := h.store.GetChat(ctx, chatID)
	if err != nil {
		writePersonaError(w, err, getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, c)
}

// Delete handles DELETE /api/v1/chats/{chatID}
func (h *ChatHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chatID := chi.URLParam(r, "chatID")

	if err := h.store.DeleteChat(ctx, chatID); err != nil {
		writePersonaError(w, err, getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"deleted": chatID})
}

// Messages handles GET /api/v1/chats/{chatID}/messages
func (h *ChatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chatID := chi.URLParam(r, "chatID")

	limit := h.cfg.HistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	if _, err := h.store.GetChat(ctx, chatID); err != nil {
		writePersonaError(w, err, getRequestID(ctx))
		return
	}

	msgs, err := h.store.ListMessages(ctx, chatID, limit)
	if err != nil {
		h.log.Error("Failed to list messages", "chat_id", chatID, "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "Failed to list messages", getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"messages": msgs,
		"total":    len(msgs),
	})
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

// Send handles POST /api/v1/chats/{chatID}/messages: one full exchange,
// returning the assistant's reply.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chatID := chi.URLParam(r, "chatID")

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Invalid request body", getRequestID(ctx))
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, "Content is required", getRequestID(ctx))
		return
	}

	c, err := h.store.GetChat(ctx, chatID)
	if err != nil {
		writePersonaError(w, err, getRequestID(ctx))
		return
	}

	reply, err := h.exchange(ctx, c, req.Content, nil)
	if err != nil {
		h.log.Error("Chat exchange failed", "chat_id", chatID, "error", err)
		response.Error(w, http.StatusServiceUnavailable, response.ErrCodeServiceUnavailable, "Model backend unavailable", getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, reply)
}

// exchange runs one conversation turn: persist the user message, recall
// memories, complete, infer mood, persist the reply, and kick off the
// background bookkeeping. When emit is non-nil the completion streams
// through it.
func (h *ChatHandler) exchange(ctx context.Context, c *storage.Chat, content string, emit func(chunk string) error) (*storage.Message, error) {
	start := h.now()

	p, err := h.store.GetPersona(ctx, c.PersonaID)
	if err != nil {
		return nil, fmt.Errorf("load persona: %w", err)
	}

	userMsg := &storage.Message{
		ID:        uuid.NewString(),
		ChatID:    c.ID,
		Role:      llm.RoleUser,
		Content:   content,
		CreatedAt: start.UTC(),
	}
	if err := h.store.AppendMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	history, err := h.store.ListMessages(ctx, c.ID, h.cfg.HistoryLimit)
	if err != nil {
		h.log.WarnContext(ctx, "history unavailable, continuing without it", "chat_id", c.ID, "error", err)
		history = []*storage.Message{userMsg}
	}

	recalled := h.recall(ctx, c, p, content)

	st, err := h.mental.Get(ctx, p.ID)
	if err != nil {
		st = mental.DefaultState(p.ID)
	}

	sc, _ := h.session.Get(ctx, c.ID)
	messages := h.buildPrompt(p, st, sc, recalled, history)

	var completion *llm.Completion
	if emit != nil {
		completion, err = h.llm.CompleteStream(ctx, messages, emit)
	} else {
		completion, err = h.llm.Complete(ctx, messages)
	}
	duration := h.now().Sub(start)
	if err != nil {
		h.metrics.RecordChatExchange("error", duration)
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	h.metrics.RecordChatExchange("ok", duration)
	h.metrics.RecordChatTokens(completion.PromptTokens, completion.CompletionTokens)

	mood := h.inferMood(ctx, completion.Content, st.Mood)

	assistantMsg := &storage.Message{
		ID:               uuid.NewString(),
		ChatID:           c.ID,
		Role:             llm.RoleAssistant,
		Content:          completion.Content,
		Mood:             mood,
		PromptTokens:     completion.PromptTokens,
		CompletionTokens: completion.CompletionTokens,
		CreatedAt:        h.now().UTC(),
	}
	if err := h.store.AppendMessage(ctx, assistantMsg); err != nil {
		return nil, fmt.Errorf("persist assistant message: %w", err)
	}

	h.applyExchangeState(ctx, p, st, mood)
	h.agent.Enqueue(agent.InputEvent{
		PersonaID: p.ID,
		ChatID:    c.ID,
		Message:   content,
		At:        start,
		Replied:   true,
	})

	go h.afterExchange(p, userMsg, assistantMsg, completion)

	return assistantMsg, nil
}

// recall performs hybrid memory retrieval, scoped to keep the asking
// chat's own turns out of the result. Failures degrade to an empty
// result; the completion must never wait on a broken index.
func (h *ChatHandler) recall(ctx context.Context, c *storage.Chat, p *storage.Persona, query string) []memory.Retrieved {
	start := h.now()

	recalled := h.retriever.Retrieve(ctx, memory.Request{
		PersonaID:     p.ID,
		Query:         query,
		ExcludeChatID: c.ID,
		Limit:         h.cfg.RecallLimit,
	})

	h.metrics.RecordRetrieval("ok", h.now().Sub(start))
	counts := map[memory.Source]int{}
	for _, m := range recalled {
		counts[m.Source]++
	}
	for source, count := range counts {
		h.metrics.RecordRetrievalResults(string(source), count)
	}
	return recalled
}

// buildPrompt assembles the system prompt and conversation window.
func (h *ChatHandler) buildPrompt(p *storage.Persona, st mental.State, sc session.Context, recalled []memory.Retrieved, history []*storage.Message) []llm.Message {
	var sb strings.Builder
	sb.WriteString(p.SystemPrompt)
	fmt.Fprintf(&sb, "\n\nYour current mood is %s.", st.Mood)

	if len(sc.Topics) > 0 {
		fmt.Fprintf(&sb, "\nThe conversation so far has touched on: %s. This is exchange %d.",
			strings.Join(sc.Topics, ", "), sc.ExchangeCount+1)
	}

	if len(recalled) > 0 {
		sb.WriteString("\n\nYou remember:")
		for _, m := range recalled {
			sb.WriteString("\n- ")
			if m.Title != "" {
				sb.WriteString(m.Title + ": ")
			}
			sb.WriteString(m.Content)
		}
	}

	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: sb.String()})
	for _, m := range history {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	return messages
}

// inferMood classifies the reply's emotional tone, falling back to the
// current mood when classification fails.
func (h *ChatHandler) inferMood(ctx context.Context, reply, current string) string {
	label, err := h.llm.InferMood(ctx, reply)
	if err != nil {
		h.log.WarnContext(ctx, "mood inference failed", "error", err)
		if current != "" {
			return current
		}
		return mental.DefaultMood
	}
	return mental.NormalizeMood(label)
}

// applyExchangeState charges the exchange against the persona's energy
// and persists the inferred mood.
func (h *ChatHandler) applyExchangeState(ctx context.Context, p *storage.Persona, st mental.State, mood string) {
	st.Mood = mood
	st.MoodValue = mental.MoodValue(mood)
	st.Energy = mental.Clamp(st.Energy-exchangeEnergyCost, 0, 1)
	st.Status = mental.StatusAwake
	st.LastInteraction = h.now().UTC()
	if err := h.mental.Put(ctx, st); err != nil {
		h.log.WarnContext(ctx, "failed to update mental state", "persona_id", p.ID, "error", err)
	}

	if p.Mood != mood {
		p.Mood = mood
		p.UpdatedAt = h.now().UTC()
		if err := h.store.SavePersona(ctx, p); err != nil {
			h.log.WarnContext(ctx, "failed to persist persona mood", "persona_id", p.ID, "error", err)
		}
	}
}

// afterExchange runs the fire-and-forget bookkeeping: archive both turns
// as conversation memories, refresh the session context, cache the latest
// response, and bump the per-model token counters.
func (h *ChatHandler) afterExchange(p *storage.Persona, userMsg, assistantMsg *storage.Message, completion *llm.Completion) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, m := range []*storage.Message{userMsg, assistantMsg} {
		speaker := "User"
		if m.Role == llm.RoleAssistant {
			speaker = p.Name
		}
		if _, err := h.writer.Store(ctx, memory.Memory{
			PersonaID: p.ID,
			ChatID:    m.ChatID,
			Content:   speaker + ": " + m.Content,
			Type:      memory.TypeConversation,
		}); err != nil {
			h.log.Warn("failed to archive conversation turn", "chat_id", m.ChatID, "error", err)
		}
	}

	if _, err := h.session.Observe(ctx, userMsg.ChatID, userMsg.Content); err != nil {
		h.log.Warn("failed to update session context", "chat_id", userMsg.ChatID, "error", err)
	}

	if err := h.cache.Set(ctx, latestResponsePrefix+userMsg.ChatID, assistantMsg.Content, latestResponseTTL); err != nil {
		h.log.Warn("failed to cache latest response", "chat_id", userMsg.ChatID, "error", err)
	}

	model := completion.Model
	if model == "" {
		model = h.llm.Model()
	}
	h.bumpTokenCounter(ctx, model+":prompt", completion.PromptTokens)
	h.bumpTokenCounter(ctx, model+":completion", completion.CompletionTokens)
}

// bumpTokenCounter adds to a per-model usage counter in the cache.
// Last-writer-wins under concurrency; the counters are informational.
func (h *ChatHandler) bumpTokenCounter(ctx context.Context, key string, delta int) {
	if delta <= 0 {
		return
	}
	total := delta
	if raw, found, err := h.cache.Get(ctx, tokenCounterPrefix+key); err == nil && found {
		if prev, err := strconv.Atoi(raw); err == nil {
			total += prev
		}
	}
	if err := h.cache.Set(ctx, tokenCounterPrefix+key, strconv.Itoa(total), 0); err != nil {
		h.log.Warn("failed to update token counter", "key", key, "error", err)
	}
}
