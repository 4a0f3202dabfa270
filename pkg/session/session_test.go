package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azera-ai/azera/pkg/cache"
)

func TestExtractTopics(t *testing.T) {
	topics := ExtractTopics("Tell me about black holes, spacetime and the nature of gravity")
	assert.Equal(t, []string{"about", "black", "holes", "spacetime", "nature"}, topics)
}

func TestExtractTopicsFiltersShortWords(t *testing.T) {
	assert.Empty(t, ExtractTopics("hi how are you"))
	assert.Equal(t, []string{"coffee"}, ExtractTopics("more coffee now!"))
}

func TestExtractTopicsStripsPunctuation(t *testing.T) {
	assert.Equal(t, []string{"dragons", "castles"}, ExtractTopics("Dragons! And castles?"))
}

func TestObserveAccumulatesTopics(t *testing.T) {
	s := NewStore(cache.NewMemoryStore())
	ctx := context.Background()

	_, err := s.Observe(ctx, "chat-1", "thinking about gardens")
	require.NoError(t, err)
	sc, err := s.Observe(ctx, "chat-1", "especially roses and tulips")
	require.NoError(t, err)

	assert.Equal(t, 2, sc.ExchangeCount)
	assert.Equal(t, []string{"thinking", "about", "gardens", "especially", "roses", "tulips"}, sc.Topics)
}

func TestObserveDeduplicatesTopics(t *testing.T) {
	s := NewStore(cache.NewMemoryStore())
	ctx := context.Background()

	_, err := s.Observe(ctx, "chat-1", "gardens gardens gardens")
	require.NoError(t, err)
	sc, err := s.Observe(ctx, "chat-1", "more about gardens please")
	require.NoError(t, err)

	count := 0
	for _, topic := range sc.Topics {
		if topic == "gardens" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestObserveTopicCapKeepsNewest(t *testing.T) {
	s := NewStore(cache.NewMemoryStore())
	ctx := context.Background()

	// 15 distinct topics across messages; only the newest 10 survive.
	var sc Context
	var err error
	for i := 1; i <= 15; i++ {
		sc, err = s.Observe(ctx, "chat-1", fmt.Sprintf("topic%02d", i))
		require.NoError(t, err)
	}

	require.Len(t, sc.Topics, 10)
	assert.Equal(t, "topic06", sc.Topics[0])
	assert.Equal(t, "topic15", sc.Topics[9])
}

func TestGetMissingReturnsEmptyContext(t *testing.T) {
	s := NewStore(cache.NewMemoryStore())

	sc, err := s.Get(context.Background(), "chat-9")
	require.NoError(t, err)
	assert.Equal(t, "chat-9", sc.ChatID)
	assert.Empty(t, sc.Topics)
	assert.Zero(t, sc.ExchangeCount)
}

func TestSessionExpiresAfterTTL(t *testing.T) {
	c := cache.NewMemoryStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	c.SetClock(func() time.Time { return now })

	s := NewStore(c)
	s.SetClock(func() time.Time { return now })
	ctx := context.Background()

	_, err := s.Observe(ctx, "chat-1", "ephemeral conversation")
	require.NoError(t, err)

	now = base.Add(25 * time.Hour)
	sc, err := s.Get(ctx, "chat-1")
	require.NoError(t, err)
	assert.Empty(t, sc.Topics, "session context should expire after a day")
}
