package agent

import (
	"context"

	"github.com/google/uuid"

	"github.com/azera-ai/azera/pkg/llm"
	"github.com/azera-ai/azera/pkg/memory"
	"github.com/azera-ai/azera/pkg/mental"
	"github.com/azera-ai/azera/pkg/storage"
)

// respond answers a queued signal: call the model, persist the exchange,
// and archive both turns as conversation memories. Failures are logged;
// the tick keeps going.
func (s *Scheduler) respond(ctx context.Context, p *storage.Persona, st *mental.State, ev InputEvent) {
	completion, err := s.llm.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: p.SystemPrompt + "\n\nYour current mood is " + st.Mood + "."},
		{Role: llm.RoleUser, Content: ev.Message},
	})
	if err != nil {
		s.log.WarnContext(ctx, "signal completion failed",
			"persona_id", p.ID, "error", err)
		return
	}

	chatID := s.ensureChat(ctx, p, ev.ChatID)
	now := s.now().UTC()
	if chatID != "" {
		userMsg := &storage.Message{
			ID:        uuid.NewString(),
			ChatID:    chatID,
			Role:      llm.RoleUser,
			Content:   ev.Message,
			CreatedAt: now,
		}
		reply := &storage.Message{
			ID:               uuid.NewString(),
			ChatID:           chatID,
			Role:             llm.RoleAssistant,
			Content:          completion.Content,
			Mood:             st.Mood,
			PromptTokens:     completion.PromptTokens,
			CompletionTokens: completion.CompletionTokens,
			CreatedAt:        now,
		}
		for _, m := range []*storage.Message{userMsg, reply} {
			if err := s.store.AppendMessage(ctx, m); err != nil {
				s.log.WarnContext(ctx, "failed to persist signal exchange",
					"chat_id", chatID, "error", err)
			}
		}
	}

	turns := []struct{ speaker, content string }{
		{"User", ev.Message},
		{p.Name, completion.Content},
	}
	for _, turn := range turns {
		if _, err := s.writer.Store(ctx, memory.Memory{
			PersonaID: p.ID,
			ChatID:    chatID,
			Content:   turn.speaker + ": " + turn.content,
			Type:      memory.TypeConversation,
		}); err != nil {
			s.log.WarnContext(ctx, "failed to archive signal exchange",
				"persona_id", p.ID, "error", err)
		}
	}

	st.LastInteraction = s.now()
	s.log.InfoContext(ctx, "signal answered", "persona_id", p.ID, "chat_id", chatID)
}

// ensureChat resolves the chat the exchange lands in, creating one when
// the signal did not name any. Returns empty when persistence is not
// possible; the exchange then survives only as memory records.
func (s *Scheduler) ensureChat(ctx context.Context, p *storage.Persona, chatID string) string {
	if chatID != "" {
		if _, err := s.store.GetChat(ctx, chatID); err == nil {
			return chatID
		}
	}
	c := &storage.Chat{
		ID:        chatID,
		PersonaID: p.ID,
		Title:     "Signals",
		CreatedAt: s.now().UTC(),
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if err := s.store.SaveChat(ctx, c); err != nil {
		s.log.WarnContext(ctx, "failed to create chat for signal",
			"persona_id", p.ID, "error", err)
		return ""
	}
	return c.ID
}
