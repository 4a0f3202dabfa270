package mental

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/azera-ai/azera/pkg/cache"
)

// Status says what the persona is currently doing.
type Status string

const (
	StatusAwake    Status = "awake"
	StatusDreaming Status = "dreaming"
)

// State is a persona's mental state snapshot.
type State struct {
	PersonaID       string    `json:"persona_id"`
	Mood            string    `json:"mood"`
	MoodValue       float64   `json:"mood_value"`
	Energy          float64   `json:"energy"`
	Focus           float64   `json:"focus"`
	Status          Status    `json:"status"`
	LastInteraction time.Time `json:"last_interaction"`
	LastDream       time.Time `json:"last_dream"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DefaultState is the state a persona starts in before any interaction.
func DefaultState(personaID string) State {
	return State{
		PersonaID: personaID,
		Mood:      DefaultMood,
		MoodValue: MoodValue(DefaultMood),
		Energy:    1.0,
		Focus:     1.0,
		Status:    StatusAwake,
	}
}

const stateKeyPrefix = "mental_state:"

// Store reads and writes mental state in the cache. Writers race under
// last-writer-wins; ticks and chat exchanges both go through here.
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

// Get loads a persona's state, returning the default state when none is
// stored or the stored entry cannot be decoded.
func (s *Store) Get(ctx context.Context, personaID string) (State, error) {
	raw, found, err := s.cache.Get(ctx, stateKeyPrefix+personaID)
	if err != nil {
		return DefaultState(personaID), fmt.Errorf("load mental state: %w", err)
	}
	if !found {
		return DefaultState(personaID), nil
	}

	var st State
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return DefaultState(personaID), nil
	}
	if st.PersonaID == "" {
		st.PersonaID = personaID
	}
	return st, nil
}

// Put stores a persona's state. Fields are clamped into their valid ranges
// and UpdatedAt is stamped.
func (s *Store) Put(ctx context.Context, st State) error {
	st.Energy = Clamp(st.Energy, 0, 1)
	st.MoodValue = Clamp(st.MoodValue, 0, 1)
	st.Focus = Clamp(st.Focus, 0, 1)
	if st.Mood == "" {
		st.Mood = MoodLabel(st.MoodValue)
	}
	if st.Status == "" {
		st.Status = StatusAwake
	}
	st.UpdatedAt = s.now().UTC()

	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode mental state: %w", err)
	}
	if err := s.cache.Set(ctx, stateKeyPrefix+st.PersonaID, string(raw), 0); err != nil {
		return fmt.Errorf("store mental state: %w", err)
	}
	return nil
}

// Touch records an interaction now, for idle tracking.
func (s *Store) Touch(ctx context.Context, personaID string) error {
	st, err := s.Get(ctx, personaID)
	if err != nil {
		return err
	}
	st.LastInteraction = s.now().UTC()
	return s.Put(ctx, st)
}
