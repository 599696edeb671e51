package worker

import (
	"context"
	"log/slog"
	"time"

	"voyalty/internal/repository"
)

// ExpirySweeper periodically flips confirmed redemptions past their expiry
// to the expired status. Reads already treat such redemptions as inactive;
// the sweep keeps the stored state in line so listings stay cheap.
type ExpirySweeper struct {
	ledger   repository.Ledger
	interval time.Duration
}

func NewExpirySweeper(ledger repository.Ledger, interval time.Duration) *ExpirySweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &ExpirySweeper{ledger: ledger, interval: interval}
}

// Start runs the sweep loop until ctx is cancelled.
func (w *ExpirySweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	slog.Info("redemption expiry sweeper is running", "interval", w.interval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("redemption expiry sweeper shutting down")
			return nil
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ExpirySweeper) sweep(ctx context.Context) {
	n, err := w.ledger.ExpireRedemptions(ctx, time.Now())
	if err != nil {
		slog.Error("expiry sweep failed", "error", err)
		return
	}
	if n > 0 {
		slog.Info("expired redemptions", "count", n)
	}
}

// Stop implements the infrastructure.Server interface (no-op, shutdown is
// via ctx).
func (w *ExpirySweeper) Stop(ctx context.Context) error {
	return nil
}
