package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/azera-ai/azera/pkg/embedding"
	"github.com/azera-ai/azera/pkg/lexical"
	"github.com/azera-ai/azera/pkg/logger"
	"github.com/azera-ai/azera/pkg/vectorstore"
)

// Names of the backing stores. The vector collection and the memories
// lexical index deliberately share a name so a memory's id locates it in
// both. ChatIndex holds raw conversation transcripts for the chat recall
// leg.
const (
	Collection = "memories"
	Index      = "memories"
	ChatIndex  = "chats"
)

type vectorWriter interface {
	EnsureCollection(ctx context.Context, name string, dimension int) error
	Upsert(ctx context.Context, collection string, points []vectorstore.Point) error
}

type lexicalWriter interface {
	EnsureIndex(ctx context.Context, uid, primaryKey string, settings lexical.IndexSettings) error
	AddDocuments(ctx context.Context, uid string, docs []lexical.Document) error
}

// Writer persists memories. The vector store is the source of truth; the
// lexical indexes are mirrors updated in the background, so a Meilisearch
// outage degrades keyword recall without failing writes.
type Writer struct {
	vector   vectorWriter
	lexical  lexicalWriter
	embedder embedding.Provider
	log      logger.Logger
	now      func() time.Time
}

// NewWriter creates a Writer.
func NewWriter(vector vectorWriter, lex lexicalWriter, embedder embedding.Provider, log logger.Logger) *Writer {
	if log == nil {
		log = logger.Global()
	}
	return &Writer{
		vector:   vector,
		lexical:  lex,
		embedder: embedder,
		log:      log,
		now:      time.Now,
	}
}

// SetClock overrides the time source. Intended for tests.
func (w *Writer) SetClock(now func() time.Time) {
	w.now = now
}

// Init creates the vector collection and the lexical indexes if needed.
func (w *Writer) Init(ctx context.Context) error {
	if err := w.vector.EnsureCollection(ctx, Collection, w.embedder.Dimension()); err != nil {
		return fmt.Errorf("ensure memory collection: %w", err)
	}
	if err := w.lexical.EnsureIndex(ctx, Index, "id", lexical.IndexSettings{
		Searchable: []string{"content", "title", "tags"},
		Filterable: []string{"memory_type", "persona_id", "chat_id", "tags", "date"},
		Sortable:   []string{"created_at_ts"},
	}); err != nil {
		// Keyword recall degrades; semantic writes still work.
		w.log.WarnContext(ctx, "lexical index unavailable", "error", err)
	}
	if err := w.lexical.EnsureIndex(ctx, ChatIndex, "id", lexical.IndexSettings{
		Searchable: []string{"content"},
		Filterable: []string{"persona_id", "chat_id"},
		Sortable:   []string{"created_at_ts"},
	}); err != nil {
		w.log.WarnContext(ctx, "chat transcript index unavailable", "error", err)
	}
	return nil
}

// Store writes a memory. A missing id is filled in; the timestamp is
// always stamped at write time so time filters see monotonic ordering.
// The returned memory carries the final id and timestamp.
func (w *Writer) Store(ctx context.Context, m Memory) (Memory, error) {
	if m.Content == "" {
		return m, fmt.Errorf("memory content is empty")
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Type == "" {
		m.Type = TypeFact
	}
	m.CreatedAt = w.now().UTC()

	vec, err := w.embedder.Embed(ctx, m.Content)
	if err != nil {
		return m, fmt.Errorf("embed memory content: %w", err)
	}

	point := vectorstore.Point{
		ID:     m.ID,
		Vector: vec,
		Payload: map[string]any{
			"content":       m.Content,
			"title":         m.Title,
			"memory_type":   m.Type,
			"persona_id":    m.PersonaID,
			"chat_id":       m.ChatID,
			"branch_id":     m.BranchID,
			"tags":          m.Tags,
			"timestamp":     m.CreatedAt.Format(time.RFC3339),
			"created_at_ts": m.CreatedAt.Unix(),
		},
	}
	if err := w.vector.Upsert(ctx, Collection, []vectorstore.Point{point}); err != nil {
		return m, fmt.Errorf("store memory vector: %w", err)
	}

	go w.mirrorToLexical(m)

	return m, nil
}

// mirrorToLexical indexes the memory for keyword search. Conversation
// turns additionally land in the chat transcript index so the chat recall
// leg can search them scoped by chat id. Failures are logged and dropped.
func (w *Writer) mirrorToLexical(m Memory) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	doc := lexical.Document{
		"id":            m.ID,
		"content":       m.Content,
		"title":         m.Title,
		"memory_type":   m.Type,
		"persona_id":    m.PersonaID,
		"chat_id":       m.ChatID,
		"tags":          m.Tags,
		"date":          m.CreatedAt.Format("2006-01-02"),
		"created_at_ts": m.CreatedAt.Unix(),
	}
	if err := w.lexical.AddDocuments(ctx, Index, []lexical.Document{doc}); err != nil {
		w.log.Warn("failed to mirror memory to lexical index",
			"memory_id", m.ID,
			"error", err,
		)
	}

	if m.Type != TypeConversation || m.ChatID == "" {
		return
	}
	turn := lexical.Document{
		"id":            m.ID,
		"content":       m.Content,
		"persona_id":    m.PersonaID,
		"chat_id":       m.ChatID,
		"created_at_ts": m.CreatedAt.Unix(),
	}
	if err := w.lexical.AddDocuments(ctx, ChatIndex, []lexical.Document{turn}); err != nil {
		w.log.Warn("failed to index chat transcript",
			"memory_id", m.ID,
			"chat_id", m.ChatID,
			"error", err,
		)
	}
}
