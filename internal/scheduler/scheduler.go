// Package scheduler drives phase transitions: on every tick it advances
// each live match whose due time has passed.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/roach88/brawl/internal/match"
)

// DefaultInterval is the tick period when none is configured.
const DefaultInterval = time.Second

// Advancer is the part of match.Service the scheduler drives.
type Advancer interface {
	Due(now time.Time) []string
	Advance(ctx context.Context, id string) (bool, error)
}

// Scheduler periodically advances due matches.
type Scheduler struct {
	matches  Advancer
	clock    match.Clock
	interval time.Duration
	logger   *slog.Logger

	// mu orders wg.Add in Start against Stop, so a Start that loses the
	// race with Stop returns without running.
	mu       sync.Mutex
	stopped  bool
	stopOnce sync.Once
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval sets the tick period.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithClock sets the time source used to decide what is due.
func WithClock(c match.Clock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// New creates a Scheduler over matches.
func New(matches Advancer, opts ...Option) *Scheduler {
	s := &Scheduler{
		matches:  matches,
		clock:    match.SystemClock{},
		interval: DefaultInterval,
		logger:   slog.Default(),
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs the tick loop until ctx is cancelled or Stop is called.
// It blocks; run it in its own goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	s.logger.Info("starting scheduler", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped (context cancelled)")
			return
		case <-s.stopChan:
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			// Failures are logged per match in Tick; the next tick retries.
			_, _ = s.Tick(ctx)
		}
	}
}

// Stop signals the loop to exit and waits for it.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		close(s.stopChan)
		s.mu.Unlock()
	})
	s.wg.Wait()
}

// Tick advances every due match once. A failing match does not stop the
// others; all failures are combined in the returned error.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	due := s.matches.Due(s.clock.Now())
	if len(due) == 0 {
		return 0, nil
	}
	s.logger.Debug("advancing due matches", "count", len(due))

	var (
		advanced int
		errs     error
	)
	for _, id := range due {
		if ctx.Err() != nil {
			return advanced, multierr.Append(errs, ctx.Err())
		}
		ok, err := s.matches.Advance(ctx, id)
		if err != nil {
			s.logger.Error("advance match", "match_id", id, "error", err)
			errs = multierr.Append(errs, err)
			continue
		}
		if ok {
			advanced++
		}
	}
	return advanced, errs
}
