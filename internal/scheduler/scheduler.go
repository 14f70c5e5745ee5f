// Package scheduler keeps every NPC's idle line fresh with batched model
// calls on an interval and on demand.
package scheduler

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"time"
)

// Snapshot is the current idle dialogue state.
type Snapshot struct {
	Dialogues  map[string]string `json:"dialogues"`
	LastUpdate *time.Time        `json:"last_update"`
	// NextUpdateIn is whole seconds until the next scheduled refresh.
	NextUpdateIn int `json:"next_update_in"`
}

// Options configures a Scheduler.
type Options struct {
	Interval    time.Duration
	AutoRefresh bool
	// ForceWaitTimeout bounds how long Stop waits for forced refreshes.
	ForceWaitTimeout time.Duration
}

// Scheduler refreshes the idle snapshot.
type Scheduler struct {
	generator *Generator
	opts      Options
	now       func() time.Time

	mu         sync.RWMutex
	dialogues  map[string]string
	lastUpdate time.Time

	lifecycle sync.Mutex
	running   bool
	stopping  bool
	cancel    context.CancelFunc
	done      chan struct{}
	forced    sync.WaitGroup

	subMu       sync.Mutex
	subscribers map[chan Snapshot]struct{}
}

// New returns a stopped Scheduler.
func New(generator *Generator, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.ForceWaitTimeout <= 0 {
		opts.ForceWaitTimeout = 10 * time.Second
	}
	return &Scheduler{
		generator:   generator,
		opts:        opts,
		now:         time.Now,
		dialogues:   map[string]string{},
		subscribers: make(map[chan Snapshot]struct{}),
	}
}

// Start refreshes once synchronously and then, unless AutoRefresh is off,
// keeps refreshing every Interval. Starting a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.running {
		slog.Warn("scheduler already running")
		return nil
	}
	s.running = true

	s.refresh(ctx)

	if !s.opts.AutoRefresh {
		return nil
	}
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(loopCtx, s.done)
	slog.Info("scheduler started", "interval", s.opts.Interval)
	return nil
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refresh(ctx)
		}
	}
}

// Stop cancels the periodic loop and waits for it, then waits for forced
// refreshes up to ForceWaitTimeout or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.lifecycle.Lock()
	if !s.running {
		s.lifecycle.Unlock()
		return nil
	}
	s.running = false
	s.stopping = true
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.lifecycle.Unlock()
	defer func() {
		s.lifecycle.Lock()
		s.stopping = false
		s.lifecycle.Unlock()
	}()

	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	waited := make(chan struct{})
	go func() {
		s.forced.Wait()
		close(waited)
	}()
	timer := time.NewTimer(s.opts.ForceWaitTimeout)
	defer timer.Stop()
	select {
	case <-waited:
	case <-timer.C:
		slog.Warn("forced refresh still running after stop", "timeout", s.opts.ForceWaitTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
	slog.Info("scheduler stopped")
	return nil
}

// ForceUpdate refreshes now, independent of the timer. A cancelled ctx
// skips the refresh and returns the current snapshot with ctx's error.
// Only refreshes started while the scheduler runs are waited on by Stop.
func (s *Scheduler) ForceUpdate(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return s.CurrentState(), err
	}
	// Add 必须与 Stop 中的 Wait 互斥
	s.lifecycle.Lock()
	tracked := s.running && !s.stopping
	if tracked {
		s.forced.Add(1)
	}
	s.lifecycle.Unlock()
	if tracked {
		defer s.forced.Done()
	}

	if !s.refresh(ctx) {
		return s.CurrentState(), ctx.Err()
	}
	return s.CurrentState(), nil
}

// refresh 在 ctx 已取消时丢弃结果, 避免预设台词覆盖快照
func (s *Scheduler) refresh(ctx context.Context) bool {
	dialogues := s.generator.Generate(ctx, "")
	if err := ctx.Err(); err != nil {
		slog.Debug("idle refresh discarded", "error", err)
		return false
	}

	s.mu.Lock()
	s.dialogues = dialogues
	s.lastUpdate = s.now()
	s.mu.Unlock()

	slog.Debug("idle dialogue refreshed", "count", len(dialogues))
	s.publish(s.CurrentState())
	return true
}

// CurrentState returns a copy of the snapshot with a non-negative countdown.
func (s *Scheduler) CurrentState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Dialogues:    maps.Clone(s.dialogues),
		NextUpdateIn: int(s.opts.Interval / time.Second),
	}
	if !s.lastUpdate.IsZero() {
		last := s.lastUpdate
		snap.LastUpdate = &last
		remaining := s.opts.Interval - s.now().Sub(last)
		snap.NextUpdateIn = max(0, int(remaining/time.Second))
	}
	return snap
}

// Dialogue returns one character's current line.
func (s *Scheduler) Dialogue(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	line, ok := s.dialogues[name]
	return line, ok
}

// Subscribe returns a channel of snapshots published after each refresh and
// a func that ends the subscription. Slow subscribers miss updates.
func (s *Scheduler) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 4)
	s.subMu.Lock()
	s.subscribers[ch] = struct{}{}
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subscribers, ch)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

func (s *Scheduler) publish(snap Snapshot) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
		}
	}
}
