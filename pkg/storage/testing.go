package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunConformanceTests exercises a Storage implementation against the
// behavior every backend must share. Implementation test files call this
// with a factory producing a fresh store.
func RunConformanceTests(t *testing.T, factory func(t *testing.T) Storage) {
	t.Run("PersonaLifecycle", func(t *testing.T) { testPersonaLifecycle(t, factory(t)) })
	t.Run("PersonaNotFound", func(t *testing.T) { testPersonaNotFound(t, factory(t)) })
	t.Run("ChatLifecycle", func(t *testing.T) { testChatLifecycle(t, factory(t)) })
	t.Run("MessageOrdering", func(t *testing.T) { testMessageOrdering(t, factory(t)) })
	t.Run("MessageLimit", func(t *testing.T) { testMessageLimit(t, factory(t)) })
	t.Run("DeleteChatRemovesMessages", func(t *testing.T) { testDeleteChatRemovesMessages(t, factory(t)) })
}

func testPersonaLifecycle(t *testing.T, s Storage) {
	defer s.Close()
	ctx := context.Background()

	p := &Persona{
		ID:           "aria",
		Name:         "Aria",
		SystemPrompt: "You are Aria, a thoughtful companion.",
		Mood:         "content",
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.SavePersona(ctx, p))

	got, err := s.GetPersona(ctx, "aria")
	require.NoError(t, err)
	assert.Equal(t, "Aria", got.Name)
	assert.Equal(t, "content", got.Mood)

	// Save is an upsert.
	p.Mood = "curious"
	require.NoError(t, s.SavePersona(ctx, p))
	got, err = s.GetPersona(ctx, "aria")
	require.NoError(t, err)
	assert.Equal(t, "curious", got.Mood)

	all, err := s.ListPersonas(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, s.DeletePersona(ctx, "aria"))
	_, err = s.GetPersona(ctx, "aria")
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func testPersonaNotFound(t *testing.T, s Storage) {
	defer s.Close()

	_, err := s.GetPersona(context.Background(), "ghost")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "persona", nf.EntityType)
}

func testChatLifecycle(t *testing.T, s Storage) {
	defer s.Close()
	ctx := context.Background()

	c1 := &Chat{ID: "c1", PersonaID: "aria", Title: "first", CreatedAt: time.Now().UTC()}
	c2 := &Chat{ID: "c2", PersonaID: "aria", Title: "second", CreatedAt: time.Now().UTC()}
	c3 := &Chat{ID: "c3", PersonaID: "nova", Title: "other persona", CreatedAt: time.Now().UTC()}
	for _, c := range []*Chat{c1, c2, c3} {
		require.NoError(t, s.SaveChat(ctx, c))
	}

	chats, err := s.ListChats(ctx, "aria")
	require.NoError(t, err)
	assert.Len(t, chats, 2)

	chats, err = s.ListChats(ctx, "nova")
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "c3", chats[0].ID)

	got, err := s.GetChat(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "first", got.Title)
}

func testMessageOrdering(t *testing.T, s Storage) {
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.SaveChat(ctx, &Chat{ID: "c1", PersonaID: "aria"}))

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.AppendMessage(ctx, &Message{
			ID:        fmt.Sprintf("m%d", i),
			ChatID:    "c1",
			Role:      "user",
			Content:   fmt.Sprintf("message %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	msgs, err := s.ListMessages(ctx, "c1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 5)
	for i, m := range msgs {
		assert.Equal(t, fmt.Sprintf("message %d", i), m.Content, "chronological order")
	}
}

func testMessageLimit(t *testing.T, s Storage) {
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.SaveChat(ctx, &Chat{ID: "c1", PersonaID: "aria"}))

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		require.NoError(t, s.AppendMessage(ctx, &Message{
			ID:        fmt.Sprintf("m%d", i),
			ChatID:    "c1",
			Content:   fmt.Sprintf("message %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	msgs, err := s.ListMessages(ctx, "c1", 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "message 7", msgs[0].Content, "limit keeps the newest messages")
	assert.Equal(t, "message 9", msgs[2].Content)
}

func testDeleteChatRemovesMessages(t *testing.T, s Storage) {
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.SaveChat(ctx, &Chat{ID: "c1", PersonaID: "aria"}))
	require.NoError(t, s.AppendMessage(ctx, &Message{
		ID: "m1", ChatID: "c1", Content: "hello", CreatedAt: time.Now().UTC(),
	}))

	require.NoError(t, s.DeleteChat(ctx, "c1"))

	_, err := s.GetChat(ctx, "c1")
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)

	msgs, err := s.ListMessages(ctx, "c1", 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
