package agent

import (
	"context"
	"time"

	"github.com/azera-ai/azera/pkg/mental"
	"github.com/azera-ai/azera/pkg/storage"
)

// Per-tick state adjustments. Mood drifts toward its midpoint while idle,
// energy recovers with rest and drains with thinking.
const (
	idleEnergyRecovery = 0.001
	idleMoodDriftRate  = 0.001
	idleFocusDecay     = 0.001
	minFocus           = 0.3
	moodDriftTarget    = 0.5
	cognitiveCost      = 0.05
	dreamMoodBoost     = 0.1
)

// stepInput drains this persona's queued interactions: each one wakes the
// persona and moves the idle clock forward.
func (s *Scheduler) stepInput(ctx context.Context, p *storage.Persona, st *mental.State, events []InputEvent) bool {
	if len(events) == 0 {
		return false
	}
	for _, ev := range events {
		if ev.At.After(st.LastInteraction) {
			st.LastInteraction = ev.At
		}
	}
	st.Status = mental.StatusAwake
	return true
}

// stepPerception applies idle decay once the persona has been quiet long
// enough: energy recovers, mood drifts toward neutral, focus fades.
func (s *Scheduler) stepPerception(ctx context.Context, p *storage.Persona, st *mental.State, events []InputEvent) bool {
	if st.LastInteraction.IsZero() {
		return false
	}
	if s.now().Sub(st.LastInteraction) <= s.cfg.IdleAfter {
		return false
	}

	drifted := false

	if st.Energy < 1.0 {
		st.Energy = mental.Clamp(st.Energy+idleEnergyRecovery, 0, 1)
		drifted = true
	}
	if delta := (moodDriftTarget - st.MoodValue) * idleMoodDriftRate; delta != 0 {
		st.MoodValue += delta
		st.Mood = mental.MoodLabel(st.MoodValue)
		drifted = true
	}
	if st.Focus > minFocus {
		st.Focus = mental.Clamp(st.Focus-idleFocusDecay, minFocus, 1)
		drifted = true
	}

	return drifted
}

// stepCognitive processes drained input: unanswered signals get a
// completion in place, every event feeds the session context and pays an
// energy cost. The completion call suspends the loop for its duration;
// the loop is single threaded and that is the accepted trade-off.
func (s *Scheduler) stepCognitive(ctx context.Context, p *storage.Persona, st *mental.State, events []InputEvent) bool {
	if len(events) == 0 {
		return false
	}
	for _, ev := range events {
		if ev.ChatID != "" {
			if _, err := s.session.Observe(ctx, ev.ChatID, ev.Message); err != nil {
				s.log.WarnContext(ctx, "failed to update session context",
					"chat_id", ev.ChatID, "error", err)
			}
		}
		if !ev.Replied {
			s.respond(ctx, p, st, ev)
		}
		st.Energy = mental.Clamp(st.Energy-cognitiveCost, 0, 1)
	}
	return true
}

// stepDreaming starts a dream cycle when the persona has been idle long
// enough and the cooldown since the last dream has passed. The persona
// always wakes back up, even when dream generation fails.
func (s *Scheduler) stepDreaming(ctx context.Context, p *storage.Persona, st *mental.State, events []InputEvent) bool {
	if st.Status != mental.StatusAwake {
		// A previous dream did not wake up cleanly; recover.
		st.Status = mental.StatusAwake
		return true
	}
	if st.LastInteraction.IsZero() {
		return false
	}
	now := s.now()
	if now.Sub(st.LastInteraction) < s.cfg.DreamIdleAfter {
		return false
	}
	if !st.LastDream.IsZero() && now.Sub(st.LastDream) < s.cfg.DreamCooldown {
		return false
	}

	st.Status = mental.StatusDreaming
	if err := s.mental.Put(ctx, *st); err != nil {
		s.log.WarnContext(ctx, "failed to mark persona dreaming",
			"persona_id", p.ID, "error", err)
	}

	if err := s.dream(ctx, p); err != nil {
		s.log.WarnContext(ctx, "dream cycle failed", "persona_id", p.ID, "error", err)
	} else {
		st.MoodValue = mental.Clamp(st.MoodValue+dreamMoodBoost, 0, 1)
		st.Mood = mental.MoodLabel(st.MoodValue)
		s.metrics.RecordDream()
	}

	st.Status = mental.StatusAwake
	st.LastDream = now
	return true
}

// stepReflection runs the daily reflection inside a two minute window at
// the configured hour, at most once per day.
func (s *Scheduler) stepReflection(ctx context.Context, p *storage.Persona, st *mental.State, events []InputEvent) bool {
	now := s.now()
	if now.Hour() != s.cfg.ReflectionHour || now.Minute() >= 2 {
		return false
	}

	marker := reflectionMarker(p.ID, now)
	_, done, err := s.cache.Get(ctx, marker)
	if err != nil {
		s.log.WarnContext(ctx, "cannot check reflection marker", "error", err)
		return false
	}
	if done {
		return false
	}

	if err := s.reflect(ctx, p); err != nil {
		s.log.WarnContext(ctx, "reflection failed", "persona_id", p.ID, "error", err)
		return false
	}

	if err := s.cache.Set(ctx, marker, "1", 48*time.Hour); err != nil {
		s.log.WarnContext(ctx, "cannot set reflection marker", "error", err)
	}
	s.metrics.RecordReflection()
	return false
}

// stepAction pushes the current mood label back onto the persisted
// persona so it survives restarts.
func (s *Scheduler) stepAction(ctx context.Context, p *storage.Persona, st *mental.State, events []InputEvent) bool {
	if p.Mood == st.Mood {
		return false
	}
	p.Mood = st.Mood
	p.UpdatedAt = s.now().UTC()
	if err := s.store.SavePersona(ctx, p); err != nil {
		s.log.WarnContext(ctx, "failed to persist persona mood",
			"persona_id", p.ID, "error", err)
	}
	return false
}

func reflectionMarker(personaID string, now time.Time) string {
	return "reflected_" + personaID + "_" + now.Format("2006-01-02")
}
