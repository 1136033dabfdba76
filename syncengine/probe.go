package syncengine

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/register_backend/utils"
)

// RunProbe is the keepalive loop: a cheap idempotent read against the
// shared store every ProbeInterval. No retries inside the probe itself; a
// failure just marks the terminal offline until the next tick.
func (e *Engine) RunProbe(ctx context.Context) {
	// Probe immediately so the status indicator is honest from startup.
	e.ProbeOnce(ctx)

	ticker := time.NewTicker(e.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.ProbeOnce(ctx)
		}
	}
}

// ProbeOnce issues one keepalive read. A timeout is treated identically to
// a network failure. The offline-to-online edge triggers a queue drain.
func (e *Engine) ProbeOnce(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, e.ProbeTimeout)
	err := e.Shared.Ping(probeCtx)
	cancel()

	if err != nil {
		e.Status.SetOffline(&utils.ConnectivityError{Op: "keepalive probe", Err: err})
		return
	}

	if cameOnline := e.Status.SetOnline(); cameOnline {
		go e.Drain(ctx)
	}
}
