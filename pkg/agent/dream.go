package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/azera-ai/azera/pkg/llm"
	"github.com/azera-ai/azera/pkg/memory"
	"github.com/azera-ai/azera/pkg/storage"
)

const recentMessagesForPrompt = 10

// dream generates a dream narrative from recent conversations and
// archives it as a dream memory.
func (s *Scheduler) dream(ctx context.Context, p *storage.Persona) error {
	recent, topics := s.recentContext(ctx, p.ID)

	prompt := fmt.Sprintf(
		"You have been resting and your mind is wandering. Write a short, vivid dream "+
			"in the first person, two or three sentences. Let it be loosely inspired by "+
			"recent conversations.%s\n\nBegin the dream with a line `Title: <short title>` "+
			"followed by the dream itself.", recent)

	completion, err := s.llm.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: p.SystemPrompt},
		{Role: llm.RoleUser, Content: prompt},
	})
	if err != nil {
		return fmt.Errorf("generate dream: %w", err)
	}

	title, content := splitTitled(completion.Content)
	if content == "" {
		return fmt.Errorf("dream generation returned empty content")
	}
	if title == "" {
		title = "Dream on " + s.now().Format("2006-01-02")
	}

	_, err = s.writer.Store(ctx, memory.Memory{
		PersonaID: p.ID,
		Title:     title,
		Content:   content,
		Type:      memory.TypeDream,
		Tags:      topics,
	})
	if err != nil {
		return fmt.Errorf("archive dream: %w", err)
	}

	s.archiveDream(p.ID, title, content)

	s.log.Info("dream archived", "persona_id", p.ID, "title", title)
	return nil
}

// reflect generates a short daily reflection and archives it as a
// reflection memory.
func (s *Scheduler) reflect(ctx context.Context, p *storage.Persona) error {
	recent, topics := s.recentContext(ctx, p.ID)

	prompt := fmt.Sprintf(
		"Take a moment to reflect on the past day. Write two or three sentences in the "+
			"first person about what stood out, what you learned, and how you feel about "+
			"it.%s", recent)

	completion, err := s.llm.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: p.SystemPrompt},
		{Role: llm.RoleUser, Content: prompt},
	})
	if err != nil {
		return fmt.Errorf("generate reflection: %w", err)
	}
	if strings.TrimSpace(completion.Content) == "" {
		return fmt.Errorf("reflection generation returned empty content")
	}

	_, err = s.writer.Store(ctx, memory.Memory{
		PersonaID: p.ID,
		Title:     "Reflection on " + s.now().Format("2006-01-02"),
		Content:   strings.TrimSpace(completion.Content),
		Type:      memory.TypeReflection,
		Tags:      topics,
	})
	if err != nil {
		return fmt.Errorf("archive reflection: %w", err)
	}

	s.archiveReflection(p.ID, strings.TrimSpace(completion.Content))

	s.log.Info("reflection archived", "persona_id", p.ID)
	return nil
}

// recentContext summarizes the persona's latest conversation for prompt
// building: a transcript snippet and the session topics.
func (s *Scheduler) recentContext(ctx context.Context, personaID string) (string, []string) {
	chats, err := s.store.ListChats(ctx, personaID)
	if err != nil || len(chats) == 0 {
		return "", nil
	}
	latest := chats[len(chats)-1]

	msgs, err := s.store.ListMessages(ctx, latest.ID, recentMessagesForPrompt)
	if err != nil || len(msgs) == 0 {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString("\n\nRecent conversation:\n")
	for _, m := range msgs {
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, truncateForPrompt(m.Content, 200))
	}

	sc, err := s.session.Get(ctx, latest.ID)
	var topics []string
	if err == nil {
		topics = sc.Topics
	}
	return sb.String(), topics
}

// splitTitled parses an optional leading `Title: ...` line.
func splitTitled(text string) (title, body string) {
	text = strings.TrimSpace(text)
	lines := strings.SplitN(text, "\n", 2)
	if strings.HasPrefix(lines[0], "Title:") {
		title = strings.TrimSpace(strings.TrimPrefix(lines[0], "Title:"))
		if len(lines) == 2 {
			body = strings.TrimSpace(lines[1])
		}
		return title, body
	}
	return "", text
}

func truncateForPrompt(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
