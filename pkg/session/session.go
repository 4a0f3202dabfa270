// Package session tracks short-lived conversation context per chat: the
// topics under discussion and how much has been said. Context lives in the
// cache for a day and then evaporates.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/azera-ai/azera/pkg/cache"
)

const (
	keyPrefix = "cognitive:session:"

	// TTL is how long an idle session context survives.
	TTL = 24 * time.Hour

	// maxTopics caps the topic list; the oldest topics fall off first.
	maxTopics = 10

	// topicsPerMessage is how many candidate topics one message may add.
	topicsPerMessage = 5

	// minTopicLen filters out short filler words.
	minTopicLen = 5
)

// Context is the rolling state of one conversation.
type Context struct {
	ChatID        string    `json:"chat_id"`
	Topics        []string  `json:"topics,omitempty"`
	ExchangeCount int       `json:"exchange_count"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Store reads and writes session contexts in the cache.
type Store struct {
	cache cache.Store
	now   func() time.Time
}

// NewStore creates a Store.
func NewStore(c cache.Store) *Store {
	return &Store{cache: c, now: time.Now}
}

// SetClock overrides the time source. Intended for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Get loads a chat's context, returning an empty one when absent or
// undecodable.
func (s *Store) Get(ctx context.Context, chatID string) (Context, error) {
	raw, found, err := s.cache.Get(ctx, keyPrefix+chatID)
	if err != nil {
		return Context{ChatID: chatID}, fmt.Errorf("load session context: %w", err)
	}
	if !found {
		return Context{ChatID: chatID}, nil
	}

	var sc Context
	if err := json.Unmarshal([]byte(raw), &sc); err != nil {
		return Context{ChatID: chatID}, nil
	}
	if sc.ChatID == "" {
		sc.ChatID = chatID
	}
	return sc, nil
}

// Put stores a chat's context with the session TTL.
func (s *Store) Put(ctx context.Context, sc Context) error {
	sc.UpdatedAt = s.now().UTC()
	raw, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("encode session context: %w", err)
	}
	if err := s.cache.Set(ctx, keyPrefix+sc.ChatID, string(raw), TTL); err != nil {
		return fmt.Errorf("store session context: %w", err)
	}
	return nil
}

// Observe folds a user message into the chat's context: topics are merged
// FIFO under the cap and the exchange counter advances.
func (s *Store) Observe(ctx context.Context, chatID, message string) (Context, error) {
	sc, err := s.Get(ctx, chatID)
	if err != nil {
		return sc, err
	}

	sc.Topics = mergeTopics(sc.Topics, ExtractTopics(message))
	sc.ExchangeCount++

	if err := s.Put(ctx, sc); err != nil {
		return sc, err
	}
	return sc, nil
}

// ExtractTopics pulls candidate topic words from a message: lowercased
// words of at least minTopicLen letters, at most topicsPerMessage of them.
func ExtractTopics(message string) []string {
	var topics []string
	for _, word := range strings.Fields(message) {
		word = strings.ToLower(strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		}))
		if len([]rune(word)) < minTopicLen {
			continue
		}
		topics = append(topics, word)
		if len(topics) == topicsPerMessage {
			break
		}
	}
	return topics
}

// mergeTopics appends new topics, skipping ones already present, and keeps
// only the newest maxTopics.
func mergeTopics(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, t := range existing {
		seen[t] = struct{}{}
	}
	merged := existing
	for _, t := range incoming {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		merged = append(merged, t)
	}
	if len(merged) > maxTopics {
		merged = merged[len(merged)-maxTopics:]
	}
	return merged
}
