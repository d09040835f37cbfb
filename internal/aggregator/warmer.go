package aggregator

import (
	"context"
	"log/slog"
	"time"
)

// Warmer performs the scheduler's single-category refresh on a timer so
// categories stay warm between aggregate requests.
type Warmer struct {
	svc      *Service
	interval time.Duration
	logger   *slog.Logger
}

// NewWarmer returns a Warmer that ticks every interval.
func NewWarmer(svc *Service, interval time.Duration, logger *slog.Logger) *Warmer {
	return &Warmer{svc: svc, interval: interval, logger: logger}
}

// Start blocks until ctx is cancelled. A refresh already running when ctx
// ends is finished before Start returns.
func (w *Warmer) Start(ctx context.Context) {
	w.logger.Info("warmer started", "interval", w.interval)

	w.tick(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("warmer stopped")
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Warmer) tick(ctx context.Context) {
	if category, ok := w.svc.Refresh(ctx); ok {
		w.logger.Debug("warmer refreshed", "category", category)
	}
}
