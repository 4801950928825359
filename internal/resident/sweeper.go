package resident

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically checks the resident slot and evicts the model once
// it has been idle for longer than the configured timeout, reclaiming its
// memory. It competes with request handlers for the same slot lock, but
// never waits on it: a contended tick is skipped and retried next period.
type Sweeper struct {
	manager  *Manager
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper that ticks every interval and evicts a
// resident idle for longer than timeout.
func NewSweeper(m *Manager, interval, timeout time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		manager:  m,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
	}
}

// Run ticks until ctx is canceled. No single tick's outcome can stop the
// loop; eviction failures are logged inside the manager and swallowed.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info("inactivity sweeper started",
		"interval", s.interval, "unload_timeout", s.timeout)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("inactivity sweeper stopped")
			return nil
		case <-ticker.C:
			s.manager.EvictIdle(s.timeout)
		}
	}
}
