// Package memory implements long-term memory for personas: writing memories
// into the semantic and lexical indexes, and hybrid recall across both plus
// prior conversation transcripts.
package memory

import "time"

// Memory type labels stored in the memory_type payload field.
const (
	TypeConversation = "conversation"
	TypeDream        = "dream"
	TypeReflection   = "reflection"
	TypeFact         = "fact"
	TypeEmotion      = "emotion"
)

// KnownType reports whether t is one of the memory type labels.
func KnownType(t string) bool {
	switch t {
	case TypeConversation, TypeDream, TypeReflection, TypeFact, TypeEmotion:
		return true
	}
	return false
}

// Source identifies which retrieval leg produced a memory.
type Source string

const (
	SourceSemantic Source = "semantic"
	SourceLexical  Source = "lexical"
	SourceChat     Source = "chat"
)

// Memory is a single long-term memory record. ChatID and BranchID scope
// conversation memories so recall can exclude the chat that is asking.
type Memory struct {
	ID        string    `json:"id"`
	PersonaID string    `json:"persona_id"`
	ChatID    string    `json:"chat_id,omitempty"`
	BranchID  string    `json:"branch_id,omitempty"`
	Title     string    `json:"title,omitempty"`
	Content   string    `json:"content"`
	Type      string    `json:"memory_type"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Retrieved is a memory as returned by hybrid recall, annotated with the
// leg that found it and its relevance score.
type Retrieved struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	Content   string    `json:"content"`
	Type      string    `json:"memory_type"`
	Score     float32   `json:"score"`
	Source    Source    `json:"source"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
