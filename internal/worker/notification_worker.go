package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/assignment-engine/internal/service"
)

// RetrySweeper runs one retry pass over failed notifications.
type RetrySweeper interface {
	RetryAllPending(ctx context.Context) (service.RetrySummary, error)
}

// RetryWorker sweeps failed notifications on a fixed interval.
type RetryWorker struct {
	sweeper  RetrySweeper
	interval time.Duration
	logger   *zap.Logger
}

// NewRetryWorker creates the worker.
func NewRetryWorker(sweeper RetrySweeper, interval time.Duration, logger *zap.Logger) *RetryWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryWorker{sweeper: sweeper, interval: interval, logger: logger}
}

// Run blocks, sweeping every interval until ctx is done.
func (w *RetryWorker) Run(ctx context.Context) {
	if w.sweeper == nil {
		return
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("notification retry worker started", zap.Duration("interval", w.interval))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("notification retry worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *RetryWorker) sweep(ctx context.Context) {
	summary, err := w.sweeper.RetryAllPending(ctx)
	if err != nil && ctx.Err() == nil {
		w.logger.Error("notification retry sweep failed", zap.Error(err))
		return
	}
	if summary.Total > 0 {
		w.logger.Debug("notification retry sweep",
			zap.Int("total", summary.Total),
			zap.Int("succeeded", summary.Succeeded),
			zap.Int("remaining_pending", summary.RemainingPending))
	}
}
