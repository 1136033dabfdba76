package syncengine

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/register_backend/config"
	"bitbucket.org/mmdatafocus/register_backend/models"
	"bitbucket.org/mmdatafocus/register_backend/utils"
)

// Drain replays the offline queue strictly in enqueue order, stopping at
// the first failure so writes are never reordered. Triggered on process
// start and on every offline-to-online transition.
//
// The in-progress flag is the real mutual-exclusion mechanism (the process
// is the only writer of its own queue); the redis lock is best-effort
// protection against a misconfigured second process sharing the same
// terminal store.
func (e *Engine) Drain(ctx context.Context) {
	if !e.draining.CompareAndSwap(false, true) {
		return
	}
	defer e.draining.Store(false)

	var lock *redislock.Lock
	if locker := config.GetRedisLock(); locker != nil {
		var err error
		lock, err = locker.Obtain(ctx, "syncengine:drain:"+e.TerminalID, 30*time.Second, nil)
		if err != nil && err != redislock.ErrNotObtained {
			e.logError("Drain", "redislock", err)
		}
		if err == redislock.ErrNotObtained {
			return
		}
	}
	if lock != nil {
		defer lock.Release(context.Background())
	}

	entries, err := models.ListOfflineQueue(ctx)
	if err != nil {
		e.logError("Drain", "list", err)
		return
	}
	if len(entries) == 0 {
		e.Status.SetPendingCount(0)
		return
	}

	drained := make([]uint, 0, len(entries))
	for _, entry := range entries {
		if err := e.replayEntry(ctx, entry); err != nil {
			e.Status.SetOffline(&utils.ConnectivityError{Op: "queue drain", Err: err})
			break
		}
		drained = append(drained, entry.ID)
	}

	if len(drained) > 0 {
		if err := models.DeleteOfflineEntries(ctx, drained); err != nil {
			e.logError("Drain", "delete prefix", err)
			return
		}
		e.markPushed()
	}

	remaining := len(entries) - len(drained)
	e.Status.SetPendingCount(remaining)

	e.Logger.WithFields(logrus.Fields{
		"module":    "syncengine",
		"drained":   len(drained),
		"remaining": remaining,
	}).Info("offline queue drain finished")
}

func (e *Engine) replayEntry(ctx context.Context, entry models.OfflineQueueEntry) error {
	pushCtx, cancel := context.WithTimeout(ctx, e.PushTimeout)
	defer cancel()

	switch entry.Kind {
	case models.QueueEntryKindSale:
		var row models.SharedSaleRow
		if err := json.Unmarshal(entry.Payload, &row); err != nil {
			// A corrupt payload would wedge the queue forever; log loudly
			// and let it be deleted with the drained prefix.
			e.logError("replayEntry", "unmarshal sale", err)
			return nil
		}
		if err := e.Shared.UpsertSale(pushCtx, row); err != nil {
			return err
		}
		e.publishEvent(ctx, row)
		return nil
	case models.QueueEntryKindVendorStat:
		var row models.SharedVendorStatRow
		if err := json.Unmarshal(entry.Payload, &row); err != nil {
			e.logError("replayEntry", "unmarshal vendor stat", err)
			return nil
		}
		return e.Shared.UpsertVendorStat(pushCtx, row)
	default:
		e.logError("replayEntry", string(entry.Kind), errors.New("unknown queue entry kind"))
		return nil
	}
}
