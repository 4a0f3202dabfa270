package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azera-ai/azera/pkg/memory"
)

func newMemoryRouter(writer *fakeMemoryWriter, retriever *fakeRetriever) http.Handler {
	h := NewMemoryHandler(writer, retriever, testLogger())
	r := chi.NewRouter()
	r.Post("/api/v1/personas/{personaID}/memories", h.Store)
	r.Get("/api/v1/personas/{personaID}/memories/search", h.Search)
	return r
}

func TestMemoryStore(t *testing.T) {
	writer := &fakeMemoryWriter{}
	router := newMemoryRouter(writer, &fakeRetriever{})

	body := bytes.NewBufferString(`{"title":"Birthday","content":"The user's birthday is June 3rd.","memory_type":"fact","tags":["personal"]}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/personas/aria/memories", body))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, 1, writer.count())
	stored := writer.stored[0]
	assert.Equal(t, "aria", stored.PersonaID)
	assert.Equal(t, "Birthday", stored.Title)
	assert.Equal(t, memory.TypeFact, stored.Type)
	assert.Equal(t, []string{"personal"}, stored.Tags)
}

func TestMemoryStoreRequiresContent(t *testing.T) {
	router := newMemoryRouter(&fakeMemoryWriter{}, &fakeRetriever{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/personas/aria/memories", bytes.NewBufferString(`{"title":"empty"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMemorySearch(t *testing.T) {
	retriever := &fakeRetriever{results: []memory.Retrieved{
		{Content: "The user prefers jasmine tea.", Source: memory.SourceSemantic, Score: 0.91},
		{Content: "tea shopping last week", Source: memory.SourceLexical, Score: 0.4},
	}}
	router := newMemoryRouter(&fakeMemoryWriter{}, retriever)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/personas/aria/memories/search?q=tea&limit=7", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Memories []memory.Retrieved `json:"memories"`
		Total    int                `json:"total"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 2, resp.Total)

	assert.Equal(t, "aria", retriever.lastReq.PersonaID)
	assert.Equal(t, "tea", retriever.lastReq.Query)
	assert.Equal(t, 7, retriever.lastReq.Limit)
}

func TestMemorySearchTypeFilter(t *testing.T) {
	retriever := &fakeRetriever{}
	router := newMemoryRouter(&fakeMemoryWriter{}, retriever)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/personas/aria/memories/search?q=tea&memory_type=dream", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, memory.TypeDream, retriever.lastReq.Type)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/personas/aria/memories/search?q=tea&memory_type=nonsense", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMemoryStoreRejectsUnknownType(t *testing.T) {
	writer := &fakeMemoryWriter{}
	router := newMemoryRouter(writer, &fakeRetriever{})

	body := bytes.NewBufferString(`{"content":"something","memory_type":"gossip"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/personas/aria/memories", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, writer.count())
}

func TestMemoryStoreAcceptsEmotion(t *testing.T) {
	writer := &fakeMemoryWriter{}
	router := newMemoryRouter(writer, &fakeRetriever{})

	body := bytes.NewBufferString(`{"content":"felt proud after the recital","memory_type":"emotion"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/personas/aria/memories", body))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, 1, writer.count())
	assert.Equal(t, memory.TypeEmotion, writer.stored[0].Type)
}

func TestMemorySearchRequiresQuery(t *testing.T) {
	router := newMemoryRouter(&fakeMemoryWriter{}, &fakeRetriever{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/personas/aria/memories/search", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
