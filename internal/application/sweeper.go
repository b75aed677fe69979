package application

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically runs the broker's maintenance pass. A panic inside
// one pass is recovered and logged; the loop always survives to the next
// interval.
type Sweeper struct {
	broker   *Broker
	interval time.Duration
	logger   *slog.Logger
}

func NewSweeper(broker *Broker, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Sweeper{broker: broker, interval: interval, logger: logger}
}

// Run blocks until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.runOnce()
		}
	}
}

func (s *Sweeper) runOnce() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("sweep pass panicked", "panic", r)
		}
	}()

	s.broker.Sweep()
}
