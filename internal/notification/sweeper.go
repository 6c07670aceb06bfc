package notification

import (
	"context"
	"time"

	"veripass/internal/common/logger"
)

// Sweeper drives the processor on a fixed interval inside the server.
type Sweeper struct {
	processor *Processor
	interval  time.Duration
	limit     int
	logger    logger.Logger
}

func NewSweeper(p *Processor, interval time.Duration, limit int, log logger.Logger) *Sweeper {
	return &Sweeper{
		processor: p,
		interval:  interval,
		limit:     limit,
		logger:    logger.ForComponent(log, "sweeper"),
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info("email queue sweeper started", map[string]interface{}{"interval": s.interval.String()})
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("email queue sweeper stopped", nil)
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if _, err := s.processor.ReclaimStale(ctx); err != nil {
		s.logger.Error("reclaim stale failed", map[string]interface{}{"error": err})
	}
	if _, err := s.processor.ProcessEmailQueue(ctx, s.limit); err != nil {
		s.logger.Error("email queue sweep failed", map[string]interface{}{"error": err})
	}
}
