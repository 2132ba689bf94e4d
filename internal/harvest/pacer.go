package harvest

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Pacer enforces a minimum delay between requests issued by one worker.
// Each worker owns its own Pacer, so the aggregate request rate scales with
// the pool size; this is a politeness floor, not a global QPS cap.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer builds a pacer from the configured per-worker request delay.
// A zero delay disables pacing.
func NewPacer(cfg Config) *Pacer {
	if cfg.RequestDelay <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(cfg.RequestDelay), 1)}
}

// Wait blocks until the next request may be issued, respecting the context.
func (p *Pacer) Wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("pacer wait: %w", err)
	}
	return nil
}
