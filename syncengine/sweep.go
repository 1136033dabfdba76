package syncengine

import (
	"context"
	"time"
)

// RunSweep is the belt-and-suspenders reconciliation loop. It runs on a
// fixed interval regardless of subscription health and applies the same
// dedup merge as the inbound feed, recovering anything a dropped
// subscription missed without unbounded history scans.
func (e *Engine) RunSweep(ctx context.Context) {
	ticker := time.NewTicker(e.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.SweepOnce(ctx)
		}
	}
}

// SweepOnce fetches the most recent shared rows (bounded page) and merges
// them. Idempotent; safe to interleave with the feed handler.
func (e *Engine) SweepOnce(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, e.PushTimeout)
	rows, err := e.Shared.RecentSales(sweepCtx, e.SweepPageSize)
	cancel()
	if err != nil {
		e.logError("SweepOnce", "recent sales", err)
		return
	}

	for _, row := range rows {
		e.HandleRemoteSale(ctx, row)
	}
}

// backoffLoop keeps fn running until ctx is done, with a capped
// exponential delay between failures.
func backoffLoop(ctx context.Context, fn func(context.Context) error, onErr func(error)) {
	delay := time.Second
	for {
		err := fn(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil && onErr != nil {
			onErr(err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
	}
}
