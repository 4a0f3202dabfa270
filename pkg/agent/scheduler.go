// Package agent runs the background life of personas: a single-threaded
// tick loop that drains interaction events, decays mental state while
// idle, dreams, and reflects once a day.
package agent

import (
	"context"
	"sync"
	"time"

	"github.com/azera-ai/azera/pkg/cache"
	"github.com/azera-ai/azera/pkg/llm"
	"github.com/azera-ai/azera/pkg/logger"
	"github.com/azera-ai/azera/pkg/memory"
	"github.com/azera-ai/azera/pkg/mental"
	"github.com/azera-ai/azera/pkg/metrics"
	"github.com/azera-ai/azera/pkg/session"
	"github.com/azera-ai/azera/pkg/storage"
)

// Config holds scheduler timing knobs.
type Config struct {
	TickInterval   time.Duration
	IdleAfter      time.Duration // idle decay starts after this much silence
	DreamIdleAfter time.Duration // dreaming requires at least this much silence
	DreamCooldown  time.Duration // minimum gap between dreams
	ReflectionHour int           // local hour of the daily reflection
	ArchiveDir     string        // optional markdown archive for dreams and journal entries
}

// DefaultConfig returns the stock scheduler timing.
func DefaultConfig() Config {
	return Config{
		TickInterval:   time.Second,
		IdleAfter:      time.Minute,
		DreamIdleAfter: 30 * time.Minute,
		DreamCooldown:  7 * time.Hour,
		ReflectionHour: 3,
	}
}

type completer interface {
	Complete(ctx context.Context, messages []llm.Message) (*llm.Completion, error)
}

type memoryWriter interface {
	Store(ctx context.Context, m memory.Memory) (memory.Memory, error)
}

// InputEvent is one user interaction, queued by the API layer and drained
// by the input step on the next tick. Replied marks events whose response
// was already produced on the request path; the cognitive step answers
// the rest in place.
type InputEvent struct {
	PersonaID string
	ChatID    string
	Message   string
	At        time.Time
	Replied   bool
}

// Scheduler drives the tick loop. All state mutation happens on the loop
// goroutine; the only concurrent entry point is Enqueue.
type Scheduler struct {
	cfg     Config
	mental  *mental.Store
	session *session.Store
	store   storage.Storage
	writer  memoryWriter
	llm     completer
	cache   cache.Store
	metrics *metrics.Manager
	log     logger.Logger
	now     func() time.Time

	inputs chan InputEvent

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a Scheduler.
func New(cfg Config, deps Deps) *Scheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.IdleAfter <= 0 {
		cfg.IdleAfter = time.Minute
	}
	if cfg.DreamIdleAfter <= 0 {
		cfg.DreamIdleAfter = 30 * time.Minute
	}
	if cfg.DreamCooldown <= 0 {
		cfg.DreamCooldown = 7 * time.Hour
	}
	log := deps.Logger
	if log == nil {
		log = logger.Global()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.NoOpManager()
	}
	return &Scheduler{
		cfg:     cfg,
		mental:  deps.Mental,
		session: deps.Session,
		store:   deps.Storage,
		writer:  deps.Writer,
		llm:     deps.LLM,
		cache:   deps.Cache,
		metrics: m,
		log:     log,
		now:     time.Now,
		inputs:  make(chan InputEvent, 256),
	}
}

// Deps carries the scheduler's collaborators.
type Deps struct {
	Mental  *mental.Store
	Session *session.Store
	Storage storage.Storage
	Writer  memoryWriter
	LLM     completer
	Cache   cache.Store
	Metrics *metrics.Manager
	Logger  logger.Logger
}

// SetClock overrides the time source. Intended for tests.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// Enqueue hands an interaction event to the loop. Events are dropped with
// a warning when the queue is full; the chat path must never block on the
// background loop.
func (s *Scheduler) Enqueue(ev InputEvent) {
	if ev.At.IsZero() {
		ev.At = s.now()
	}
	select {
	case s.inputs <- ev:
	default:
		s.log.Warn("input queue full, dropping event", "persona_id", ev.PersonaID)
	}
}

// Start launches the tick loop. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.loop(ctx)
	s.log.Info("agent scheduler started", "tick_interval", s.cfg.TickInterval)
}

// Stop halts the loop and waits for the current tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	<-done
	s.log.Info("agent scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one full pass of the six systems over every persona. It is
// exported so tests can drive the loop deterministically.
func (s *Scheduler) Tick(ctx context.Context) {
	events := s.drainInputs()

	personas, err := s.store.ListPersonas(ctx)
	if err != nil {
		s.log.WarnContext(ctx, "tick skipped, cannot list personas", "error", err)
		s.metrics.RecordTick("error")
		return
	}

	for _, p := range personas {
		s.tickPersona(ctx, p, events[p.ID])
	}
	s.metrics.RecordTick("ok")
}

// drainInputs empties the queue and groups events by persona.
func (s *Scheduler) drainInputs() map[string][]InputEvent {
	grouped := make(map[string][]InputEvent)
	for {
		select {
		case ev := <-s.inputs:
			grouped[ev.PersonaID] = append(grouped[ev.PersonaID], ev)
		default:
			return grouped
		}
	}
}

func (s *Scheduler) tickPersona(ctx context.Context, p *storage.Persona, events []InputEvent) {
	st, err := s.mental.Get(ctx, p.ID)
	if err != nil {
		s.log.WarnContext(ctx, "tick skipped for persona, mental state unavailable",
			"persona_id", p.ID, "error", err)
		return
	}

	steps := []struct {
		name string
		run  func(context.Context, *storage.Persona, *mental.State, []InputEvent) bool
	}{
		{"input", s.stepInput},
		{"perception", s.stepPerception},
		{"cognitive", s.stepCognitive},
		{"dreaming", s.stepDreaming},
		{"reflection", s.stepReflection},
		{"action", s.stepAction},
	}

	dirty := false
	for _, step := range steps {
		start := s.now()
		if step.run(ctx, p, &st, events) {
			dirty = true
		}
		s.metrics.RecordTickStep(step.name, s.now().Sub(start))
	}

	if dirty {
		if err := s.mental.Put(ctx, st); err != nil {
			s.log.WarnContext(ctx, "failed to persist mental state",
				"persona_id", p.ID, "error", err)
		}
	}
}
