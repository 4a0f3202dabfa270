package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/azera-ai/azera/pkg/embedding"
	"github.com/azera-ai/azera/pkg/lexical"
	"github.com/azera-ai/azera/pkg/logger"
	"github.com/azera-ai/azera/pkg/vectorstore"
)

const (
	// ScoreGate is the minimum cosine similarity for semantic hits.
	ScoreGate float32 = 0.45

	// EchoWindow excludes memories written moments ago, so a reply does
	// not recall the exchange that is still in the prompt.
	EchoWindow = 60 * time.Second

	// placeholderScore stands in for legs that do not score their hits.
	placeholderScore float32 = 0.5

	// dedupPrefixLen is how many leading characters identify a memory for
	// cross-leg deduplication.
	dedupPrefixLen = 100

	// Per-source content caps keep the assembled prompt bounded.
	maxSemanticChars = 400
	maxLexicalChars  = 500
	maxChatChars     = 300

	// Each leg asks for twice the final limit to absorb post-filter loss
	// from the score gate and the echo window, capped at maxCandidates.
	maxCandidates = 10

	legTimeout   = 10 * time.Second
	defaultLimit = 5
)

type vectorSearcher interface {
	Search(ctx context.Context, collection string, vector []float32, limit int, filter *vectorstore.Filter, scoreThreshold float32) ([]vectorstore.ScoredPoint, error)
}

type lexicalSearcher interface {
	Search(ctx context.Context, uid, query string, limit int, filter string) ([]lexical.Document, error)
}

// Request describes one recall. ExcludeChatID keeps the asking chat's own
// turns out of the result; Type narrows recall to one memory type.
type Request struct {
	PersonaID     string
	Query         string
	ExcludeChatID string
	Type          string
	Limit         int
}

// Retriever performs hybrid recall over the semantic index, the lexical
// index, and indexed chat transcripts. Recall never fails: a broken leg
// logs a warning and contributes nothing.
type Retriever struct {
	vector   vectorSearcher
	lexical  lexicalSearcher
	embedder embedding.Provider
	log      logger.Logger
	now      func() time.Time
}

// NewRetriever creates a Retriever.
func NewRetriever(vector vectorSearcher, lex lexicalSearcher, embedder embedding.Provider, log logger.Logger) *Retriever {
	if log == nil {
		log = logger.Global()
	}
	return &Retriever{
		vector:   vector,
		lexical:  lex,
		embedder: embedder,
		log:      log,
		now:      time.Now,
	}
}

// SetClock overrides the time source. Intended for tests.
func (r *Retriever) SetClock(now func() time.Time) {
	r.now = now
}

// Retrieve merges the three legs in priority order: semantic, then
// lexical, then chat transcripts. Duplicates are dropped by content
// prefix, keeping the hit from the higher-priority leg, and the merged
// list is truncated to the requested limit.
func (r *Retriever) Retrieve(ctx context.Context, req Request) []Retrieved {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	candidates := limit * 2
	if candidates > maxCandidates {
		candidates = maxCandidates
	}
	now := r.now()

	semantic := r.semanticLeg(ctx, req, candidates, now)
	lexicalHits := r.lexicalLeg(ctx, req, candidates)
	chat := r.chatLeg(ctx, req, candidates)

	seen := make(map[string]struct{})
	merged := make([]Retrieved, 0, limit)
	for _, leg := range [][]Retrieved{semantic, lexicalHits, chat} {
		for _, m := range leg {
			key := contentKey(m.Content)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, m)
			if len(merged) == limit {
				return merged
			}
		}
	}
	return merged
}

// semanticLeg is the only leg with quality gates: the score gate and the
// echo window apply here, lexical relevance is trusted as is.
func (r *Retriever) semanticLeg(ctx context.Context, req Request, limit int, now time.Time) []Retrieved {
	legCtx, cancel := context.WithTimeout(ctx, legTimeout)
	defer cancel()

	vec, err := r.embedder.Embed(legCtx, req.Query)
	if err != nil {
		r.log.WarnContext(ctx, "semantic recall skipped, embedding failed", "error", err)
		return nil
	}

	filter := &vectorstore.Filter{
		Must: []vectorstore.MatchCondition{vectorstore.Match("persona_id", req.PersonaID)},
	}
	if req.Type != "" {
		filter.Must = append(filter.Must, vectorstore.Match("memory_type", req.Type))
	}
	if req.ExcludeChatID != "" {
		filter.MustNot = append(filter.MustNot, vectorstore.Match("chat_id", req.ExcludeChatID))
	}
	hits, err := r.vector.Search(legCtx, Collection, vec, limit, filter, ScoreGate)
	if err != nil {
		r.log.WarnContext(ctx, "semantic recall failed", "error", err)
		return nil
	}

	out := make([]Retrieved, 0, len(hits))
	for _, hit := range hits {
		if hit.Score < ScoreGate {
			continue
		}
		m := Retrieved{
			ID:        hit.ID,
			Content:   truncate(payloadString(hit.Payload, "content"), maxSemanticChars),
			Title:     payloadString(hit.Payload, "title"),
			Type:      payloadString(hit.Payload, "memory_type"),
			Tags:      payloadStrings(hit.Payload, "tags"),
			Score:     hit.Score,
			Source:    SourceSemantic,
			CreatedAt: payloadTime(hit.Payload),
		}
		if m.Content == "" || isEcho(m.CreatedAt, now) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (r *Retriever) lexicalLeg(ctx context.Context, req Request, limit int) []Retrieved {
	legCtx, cancel := context.WithTimeout(ctx, legTimeout)
	defer cancel()

	filter := fmt.Sprintf("persona_id = '%s'", req.PersonaID)
	if req.Type != "" {
		filter += fmt.Sprintf(" AND memory_type = '%s'", req.Type)
	}
	hits, err := r.lexical.Search(legCtx, Index, req.Query, limit, filter)
	if err != nil {
		r.log.WarnContext(ctx, "lexical recall failed", "error", err)
		return nil
	}

	out := make([]Retrieved, 0, len(hits))
	for _, doc := range hits {
		m := Retrieved{
			ID:        docString(doc, "id"),
			Content:   truncate(docString(doc, "content"), maxLexicalChars),
			Title:     docString(doc, "title"),
			Type:      docString(doc, "memory_type"),
			Tags:      payloadStrings(map[string]any(doc), "tags"),
			Score:     placeholderScore,
			Source:    SourceLexical,
			CreatedAt: docTime(doc),
		}
		if m.Content == "" {
			continue
		}
		out = append(out, m)
	}
	return out
}

// chatLeg searches indexed chat transcripts, excluding the chat the query
// came from so a conversation never recalls itself.
func (r *Retriever) chatLeg(ctx context.Context, req Request, limit int) []Retrieved {
	legCtx, cancel := context.WithTimeout(ctx, legTimeout)
	defer cancel()

	filter := fmt.Sprintf("persona_id = '%s'", req.PersonaID)
	if req.ExcludeChatID != "" {
		filter += fmt.Sprintf(" AND chat_id != '%s'", req.ExcludeChatID)
	}
	hits, err := r.lexical.Search(legCtx, ChatIndex, req.Query, limit, filter)
	if err != nil {
		r.log.WarnContext(ctx, "chat transcript recall failed", "error", err)
		return nil
	}

	out := make([]Retrieved, 0, len(hits))
	for _, doc := range hits {
		content := truncate(docString(doc, "content"), maxChatChars)
		if content == "" {
			continue
		}
		out = append(out, Retrieved{
			ID:        docString(doc, "id"),
			Content:   content,
			Type:      TypeConversation,
			Score:     placeholderScore,
			Source:    SourceChat,
			CreatedAt: docTime(doc),
		})
	}
	return out
}

// isEcho reports whether a memory was created inside the echo window.
func isEcho(createdAt, now time.Time) bool {
	if createdAt.IsZero() {
		return false
	}
	age := now.Sub(createdAt)
	return age >= 0 && age < EchoWindow
}

// contentKey is the dedup key: the first dedupPrefixLen characters.
func contentKey(content string) string {
	return truncate(content, dedupPrefixLen)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func payloadString(payload map[string]any, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

func payloadStrings(payload map[string]any, key string) []string {
	raw, ok := payload[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func payloadTime(payload map[string]any) time.Time {
	if s, ok := payload["timestamp"].(string); ok {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t
		}
	}
	if ts, ok := payload["created_at_ts"].(float64); ok {
		return time.Unix(int64(ts), 0).UTC()
	}
	return time.Time{}
}

func docString(doc lexical.Document, key string) string {
	if v, ok := doc[key].(string); ok {
		return v
	}
	return ""
}

func docTime(doc lexical.Document) time.Time {
	switch ts := doc["created_at_ts"].(type) {
	case float64:
		return time.Unix(int64(ts), 0).UTC()
	case int64:
		return time.Unix(ts, 0).UTC()
	}
	return time.Time{}
}
