// Package storage provides persistent storage abstraction for personas,
// chats, and chat messages.
package storage

import (
	"context"
	"fmt"
	"time"
)

// Storage defines the interface for persistent storage operations.
type Storage interface {
	// Persona operations
	SavePersona(ctx context.Context, p *Persona) error
	GetPersona(ctx context.Context, id string) (*Persona, error)
	ListPersonas(ctx context.Context) ([]*Persona, error)
	DeletePersona(ctx context.Context, id string) error

	// Chat operations
	SaveChat(ctx context.Context, c *Chat) error
	GetChat(ctx context.Context, id string) (*Chat, error)
	ListChats(ctx context.Context, personaID string) ([]*Chat, error)
	DeleteChat(ctx context.Context, id string) error

	// Message operations
	AppendMessage(ctx context.Context, m *Message) error
	ListMessages(ctx context.Context, chatID string, limit int) ([]*Message, error)

	// Lifecycle
	Close() error
}

// Persona is a companion identity: its prompt, description, and the mood
// it was last seen in.
type Persona struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	SystemPrompt string    `json:"system_prompt"`
	Mood         string    `json:"mood,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Chat is one conversation thread with a persona.
type Chat struct {
	ID        string    `json:"id"`
	PersonaID string    `json:"persona_id"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one turn in a chat. Token counts are zero when the model did
// not report them.
type Message struct {
	ID               string    `json:"id"`
	ChatID           string    `json:"chat_id"`
	Role             string    `json:"role"`
	Content          string    `json:"content"`
	Mood             string    `json:"mood,omitempty"`
	PromptTokens     int       `json:"prompt_tokens,omitempty"`
	CompletionTokens int       `json:"completion_tokens,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// NotFoundError indicates that the requested entity was not found.
type NotFoundError struct {
	EntityType string
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.EntityType, e.ID)
}

// DuplicateKeyError indicates that an entity with the given ID already exists.
type DuplicateKeyError struct {
	EntityType string
	ID         string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.EntityType, e.ID)
}

// StorageUnavailableError indicates that the storage backend is unavailable.
type StorageUnavailableError struct {
	Cause error
}

func (e *StorageUnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable: %v", e.Cause)
}

// SerializationError indicates a failure in data serialization/deserialization.
type SerializationError struct {
	Operation string
	Cause     error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialization error during %s: %v", e.Operation, e.Cause)
}
