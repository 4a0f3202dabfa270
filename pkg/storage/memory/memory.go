// Package memory provides an in-memory implementation of the storage
// interface, used in tests and for running without a data directory.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/azera-ai/azera/pkg/storage"
)

// MemoryStorage implements storage.Storage with in-process maps.
type MemoryStorage struct {
	mu       sync.RWMutex
	personas map[string]*storage.Persona
	chats    map[string]*storage.Chat
	messages map[string][]*storage.Message // chatID -> messages in append order
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		personas: make(map[string]*storage.Persona),
		chats:    make(map[string]*storage.Chat),
		messages: make(map[string][]*storage.Message),
	}
}

func (m *MemoryStorage) SavePersona(ctx context.Context, p *storage.Persona) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.personas[p.ID] = &cp
	return nil
}

func (m *MemoryStorage) GetPersona(ctx context.Context, id string) (*storage.Persona, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.personas[id]
	if !ok {
		return nil, &storage.NotFoundError{EntityType: "persona", ID: id}
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStorage) ListPersonas(ctx context.Context) ([]*storage.Persona, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*storage.Persona, 0, len(m.personas))
	for _, p := range m.personas {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStorage) DeletePersona(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.personas[id]; !ok {
		return &storage.NotFoundError{EntityType: "persona", ID: id}
	}
	delete(m.personas, id)
	return nil
}

func (m *MemoryStorage) SaveChat(ctx context.Context, c *storage.Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.chats[c.ID] = &cp
	return nil
}

func (m *MemoryStorage) GetChat(ctx context.Context, id string) (*storage.Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.chats[id]
	if !ok {
		return nil, &storage.NotFoundError{EntityType: "chat", ID: id}
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStorage) ListChats(ctx context.Context, personaID string) ([]*storage.Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*storage.Chat
	for _, c := range m.chats {
		if personaID != "" && c.PersonaID != personaID {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStorage) DeleteChat(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chats[id]; !ok {
		return &storage.NotFoundError{EntityType: "chat", ID: id}
	}
	delete(m.chats, id)
	delete(m.messages, id)
	return nil
}

func (m *MemoryStorage) AppendMessage(ctx context.Context, msg *storage.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *msg
	m.messages[msg.ChatID] = append(m.messages[msg.ChatID], &cp)
	sort.SliceStable(m.messages[msg.ChatID], func(i, j int) bool {
		return m.messages[msg.ChatID][i].CreatedAt.Before(m.messages[msg.ChatID][j].CreatedAt)
	})
	return nil
}

func (m *MemoryStorage) ListMessages(ctx context.Context, chatID string, limit int) ([]*storage.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.messages[chatID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]*storage.Message, 0, len(msgs))
	for _, msg := range msgs {
		cp := *msg
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryStorage) Close() error {
	return nil
}
