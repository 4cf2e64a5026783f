// Package toast owns ephemeral, auto-expiring notices.
package toast

import (
	"log/slog"
	"sync"
	"time"

	"garage-client/internal/hub"
	"garage-client/internal/model"
	"github.com/jonboulle/clockwork"
)

const DefaultDuration = 5 * time.Second

type Options struct {
	Clock    clockwork.Clock
	Duration time.Duration
	Logger   *slog.Logger
}

type Scheduler struct {
	clock    clockwork.Clock
	duration time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	nextID int64
	active []model.Toast
	timers map[int64]clockwork.Timer

	changes *hub.Hub[[]model.Toast]
	shown   *hub.Hub[model.Toast]
}

func NewScheduler(opts Options) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Duration <= 0 {
		opts.Duration = DefaultDuration
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Scheduler{
		clock:    opts.Clock,
		duration: opts.Duration,
		logger:   opts.Logger,
		timers:   make(map[int64]clockwork.Timer),
		changes:  hub.New[[]model.Toast](),
		shown:    hub.New[model.Toast](),
	}
}

// Show appends a toast and schedules its removal. An empty severity means info.
func (s *Scheduler) Show(message string, severity model.Severity) model.Toast {
	if severity == "" {
		severity = model.SeverityInfo
	}

	s.mu.Lock()
	s.nextID++
	t := model.Toast{
		ID:        s.nextID,
		Message:   message,
		Severity:  severity,
		ExpiresAt: s.clock.Now().Add(s.duration),
	}
	s.active = append(s.active, t)
	id := t.ID
	s.timers[id] = s.clock.AfterFunc(s.duration, func() { s.Remove(id) })
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Debug("toast shown", "id", t.ID, "severity", t.Severity)
	s.shown.Broadcast(t)
	s.changes.Broadcast(snapshot)
	return t
}

// Remove drops the toast with id. Unknown or already removed ids are ignored.
func (s *Scheduler) Remove(id int64) {
	s.mu.Lock()
	idx := -1
	for i, t := range s.active {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		s.mu.Unlock()
		return
	}
	s.active = append(s.active[:idx], s.active[idx+1:]...)
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.changes.Broadcast(snapshot)
}

// Active returns the live toasts, oldest first.
func (s *Scheduler) Active() []model.Toast {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn for every change of the active sequence.
func (s *Scheduler) Subscribe(fn func([]model.Toast)) (unsubscribe func()) {
	return s.changes.Register(fn)
}

// SubscribeShown registers fn for every newly shown toast.
func (s *Scheduler) SubscribeShown(fn func(model.Toast)) (unsubscribe func()) {
	return s.shown.Register(fn)
}

// Close stops pending expiry timers without notifying observers.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	s.active = nil
}

func (s *Scheduler) snapshotLocked() []model.Toast {
	out := make([]model.Toast, len(s.active))
	copy(out, s.active)
	return out
}
