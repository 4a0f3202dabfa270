package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azera-ai/azera/pkg/lexical"
	"github.com/azera-ai/azera/pkg/vectorstore"
)

type fakeVectorWriter struct {
	mu          sync.Mutex
	points      []vectorstore.Point
	upsertErr   error
	ensuredDims []int
}

func (f *fakeVectorWriter) EnsureCollection(ctx context.Context, name string, dimension int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensuredDims = append(f.ensuredDims, dimension)
	return nil
}

func (f *fakeVectorWriter) Upsert(ctx context.Context, collection string, points []vectorstore.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.points = append(f.points, points...)
	return nil
}

type fakeLexicalWriter struct {
	mu      sync.Mutex
	docs    map[string][]lexical.Document
	ensured []string
}

func (f *fakeLexicalWriter) EnsureIndex(ctx context.Context, uid, primaryKey string, settings lexical.IndexSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured = append(f.ensured, uid)
	return nil
}

func (f *fakeLexicalWriter) AddDocuments(ctx context.Context, uid string, docs []lexical.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.docs == nil {
		f.docs = make(map[string][]lexical.Document)
	}
	f.docs[uid] = append(f.docs[uid], docs...)
	return nil
}

func (f *fakeLexicalWriter) count(uid string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs[uid])
}

func TestWriterStoreFillsDefaults(t *testing.T) {
	v := &fakeVectorWriter{}
	l := &fakeLexicalWriter{}
	w := NewWriter(v, l, fixedEmbedder{dim: 4}, nil)

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w.SetClock(func() time.Time { return fixed })

	stored, err := w.Store(context.Background(), Memory{
		PersonaID: "aria",
		Content:   "the user prefers tea over coffee",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, stored.ID)
	assert.Equal(t, TypeFact, stored.Type)
	assert.Equal(t, fixed, stored.CreatedAt)

	require.Len(t, v.points, 1)
	p := v.points[0]
	assert.Equal(t, stored.ID, p.ID)
	assert.Len(t, p.Vector, 4)
	assert.Equal(t, "the user prefers tea over coffee", p.Payload["content"])
	assert.Equal(t, "aria", p.Payload["persona_id"])
	assert.Equal(t, fixed.Format(time.RFC3339), p.Payload["timestamp"])
	assert.Equal(t, fixed.Unix(), p.Payload["created_at_ts"])
}

func TestWriterStampsWriteTime(t *testing.T) {
	v := &fakeVectorWriter{}
	w := NewWriter(v, &fakeLexicalWriter{}, fixedEmbedder{dim: 4}, nil)

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w.SetClock(func() time.Time { return fixed })

	// A caller-supplied timestamp is ignored; time filters need the
	// write time.
	stored, err := w.Store(context.Background(), Memory{
		PersonaID: "aria",
		Content:   "an hour-old note",
		CreatedAt: fixed.Add(-time.Hour),
	})
	require.NoError(t, err)

	assert.Equal(t, fixed, stored.CreatedAt)
	require.Len(t, v.points, 1)
	assert.Equal(t, fixed.Unix(), v.points[0].Payload["created_at_ts"])
}

func TestWriterCarriesChatScope(t *testing.T) {
	v := &fakeVectorWriter{}
	l := &fakeLexicalWriter{}
	w := NewWriter(v, l, fixedEmbedder{dim: 4}, nil)

	_, err := w.Store(context.Background(), Memory{
		PersonaID: "aria",
		ChatID:    "chat-1",
		Content:   "User: do you remember the lighthouse?",
		Type:      TypeConversation,
	})
	require.NoError(t, err)

	require.Len(t, v.points, 1)
	assert.Equal(t, "chat-1", v.points[0].Payload["chat_id"], "recall scoping needs the chat id in the payload")

	// Conversation turns are mirrored into the chat transcript index too.
	require.Eventually(t, func() bool { return l.count(ChatIndex) == 1 },
		time.Second, 5*time.Millisecond)
	l.mu.Lock()
	turn := l.docs[ChatIndex][0]
	l.mu.Unlock()
	assert.Equal(t, "chat-1", turn["chat_id"])
	assert.Equal(t, "User: do you remember the lighthouse?", turn["content"])
}

func TestWriterMirrorsToLexicalAsync(t *testing.T) {
	v := &fakeVectorWriter{}
	l := &fakeLexicalWriter{}
	w := NewWriter(v, l, fixedEmbedder{dim: 4}, nil)

	stored, err := w.Store(context.Background(), Memory{
		ID:        "fixed-id",
		PersonaID: "aria",
		Content:   "remembers the seaside trip",
		Type:      TypeEmotion,
	})
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", stored.ID)

	require.Eventually(t, func() bool { return l.count(Index) == 1 },
		time.Second, 5*time.Millisecond)

	l.mu.Lock()
	doc := l.docs[Index][0]
	l.mu.Unlock()
	assert.Equal(t, "fixed-id", doc["id"])
	assert.Equal(t, TypeEmotion, doc["memory_type"])
	assert.Equal(t, "aria", doc["persona_id"])

	assert.Zero(t, l.count(ChatIndex), "non-conversation memories stay out of the transcript index")
}

func TestWriterVectorErrorSurfaces(t *testing.T) {
	v := &fakeVectorWriter{upsertErr: fmt.Errorf("qdrant down")}
	w := NewWriter(v, &fakeLexicalWriter{}, fixedEmbedder{dim: 4}, nil)

	_, err := w.Store(context.Background(), Memory{PersonaID: "aria", Content: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "qdrant down")
}

func TestWriterRejectsEmptyContent(t *testing.T) {
	w := NewWriter(&fakeVectorWriter{}, &fakeLexicalWriter{}, fixedEmbedder{dim: 4}, nil)

	_, err := w.Store(context.Background(), Memory{PersonaID: "aria"})
	require.Error(t, err)
}

func TestWriterInitEnsuresIndexes(t *testing.T) {
	v := &fakeVectorWriter{}
	l := &fakeLexicalWriter{}
	w := NewWriter(v, l, fixedEmbedder{dim: 768}, nil)

	require.NoError(t, w.Init(context.Background()))
	require.Len(t, v.ensuredDims, 1)
	assert.Equal(t, 768, v.ensuredDims[0])
	assert.Equal(t, []string{Index, ChatIndex}, l.ensured)
}

func TestKnownType(t *testing.T) {
	for _, typ := range []string{TypeConversation, TypeDream, TypeReflection, TypeFact, TypeEmotion} {
		assert.True(t, KnownType(typ), typ)
	}
	assert.False(t, KnownType("core"))
	assert.False(t, KnownType(""))
}
