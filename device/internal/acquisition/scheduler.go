// Package acquisition runs reading cycles on a fixed, runtime-adjustable
// interval while acquisition is switched on.
package acquisition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultInterval = 30 * time.Second
	MinInterval     = time.Second

	pollInterval = 100 * time.Millisecond
)

var ErrInterval = errors.New("acquisition: interval below minimum")

type State string

const (
	Running State = "running"
	Stopped State = "stopped"
)

type Status struct {
	State    State
	Interval time.Duration
}

// Cycle performs one acquisition: read every slot and forward the record.
type Cycle func(ctx context.Context) error

type Scheduler struct {
	mu       sync.Mutex
	running  bool
	interval time.Duration
	last     time.Time

	cycle  Cycle
	now    func() time.Time
	poll   time.Duration
	logger *slog.Logger
}

type Option func(*Scheduler)

func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d >= MinInterval {
			s.interval = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// New returns a stopped scheduler.
func New(cycle Cycle, opts ...Option) *Scheduler {
	s := &Scheduler{
		interval: DefaultInterval,
		cycle:    cycle,
		now:      time.Now,
		poll:     pollInterval,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	s.last = s.now()
	return s
}

// Start switches acquisition on. The first cycle runs one full interval
// after Start; starting an already running scheduler keeps its timer.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.last = s.now()
	s.logger.Info("acquisition started", "interval", s.interval)
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.logger.Info("acquisition stopped")
	}
	s.running = false
}

// SetInterval changes the period between cycles. The timer is not reset.
func (s *Scheduler) SetInterval(d time.Duration) error {
	if d < MinInterval {
		return fmt.Errorf("%w: %v < %v", ErrInterval, d, MinInterval)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if d != s.interval {
		s.logger.Info("acquisition interval updated", "interval", d)
	}
	s.interval = d
	return nil
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stopped
	if s.running {
		st = Running
	}
	return Status{State: st, Interval: s.interval}
}

// Run checks the timer until ctx is done. Cycles never overlap: a cycle
// that outlasts the interval delays the next one.
func (s *Scheduler) Run(ctx context.Context) error {
	t := time.NewTicker(s.poll)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.step(ctx)
		}
	}
}

// step runs a cycle when acquisition is on and the interval has elapsed.
// It reports whether a cycle ran.
func (s *Scheduler) step(ctx context.Context) bool {
	s.mu.Lock()
	now := s.now()
	if !s.running || now.Sub(s.last) < s.interval {
		s.mu.Unlock()
		return false
	}
	s.last = now
	s.mu.Unlock()

	start := time.Now()
	if err := s.cycle(ctx); err != nil {
		s.logger.Error("scheduled acquisition failed", "error", err)
		return true
	}
	s.logger.Debug("scheduled acquisition done", "duration_ms", time.Since(start).Milliseconds())
	return true
}
