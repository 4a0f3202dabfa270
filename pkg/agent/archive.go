package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Dreams and reflections also land as markdown files when ArchiveDir is
// set, so they can be read outside the indexes. Archive failures are
// logged and never fail the tick.

func (s *Scheduler) archiveDream(personaID, title, content string) {
	if s.cfg.ArchiveDir == "" {
		return
	}
	now := s.now()
	path := filepath.Join(s.cfg.ArchiveDir, "dreams", fmt.Sprintf("dream_%d.md", now.Unix()))
	text := fmt.Sprintf("# %s\n\npersona: %s\ndate: %s\n\n%s\n",
		title, personaID, now.Format(time.RFC3339), content)
	if err := writeArchiveFile(path, text); err != nil {
		s.log.Warn("failed to archive dream file", "path", path, "error", err)
	}
}

func (s *Scheduler) archiveReflection(personaID, content string) {
	if s.cfg.ArchiveDir == "" {
		return
	}
	day := s.now().Format("2006-01-02")
	path := filepath.Join(s.cfg.ArchiveDir, "journal", day+".md")
	entry := fmt.Sprintf("## %s (%s)\n\n%s\n\n", day, personaID, content)
	if err := appendArchiveFile(path, entry); err != nil {
		s.log.Warn("failed to archive journal entry", "path", path, "error", err)
	}
}

func writeArchiveFile(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(text), 0o644)
}

func appendArchiveFile(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(text)
	return err
}
