package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/travelguide-gtfs/internal/common/logger"
)

// Runner performs one refresh.
type Runner interface {
	Run(ctx context.Context) (*Summary, error)
}

// Scheduler reruns a Runner on a fixed interval until stopped. A failed
// run is logged and the next tick tries again.
type Scheduler struct {
	runner    Runner
	interval  time.Duration
	onSuccess func(*Summary)
	logger    logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

func NewScheduler(runner Runner, interval time.Duration, logger logger.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		logger:   logger,
	}
}

// OnSuccess registers a callback for runs that completed without error.
func (s *Scheduler) OnSuccess(fn func(*Summary)) {
	s.onSuccess = fn
}

// Start runs immediately and then on every tick. It blocks until ctx is
// cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("scheduler interval must be positive, got %s", s.interval)
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		cancel()
	}()

	s.logger.Info("Starting GTFS snapshot scheduler", "interval", s.interval)

	// Initial run
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return nil
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return fmt.Errorf("scheduler not running")
	}

	if s.cancel != nil {
		s.cancel()
	}

	s.running = false
	return nil
}

func (s *Scheduler) runOnce(ctx context.Context) {
	summary, err := s.runner.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("Scheduled refresh failed", "error", err)
		return
	}
	if s.onSuccess != nil {
		s.onSuccess(summary)
	}
}
