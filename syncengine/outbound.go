package syncengine

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/register_backend/models"
	"bitbucket.org/mmdatafocus/register_backend/utils"
)

// PushSale attempts the upsert-by-id write to the shared store. On failure
// the record is parked in the durable offline queue and the caller still
// gets nil: a failed remote push never loses or blocks a local sale.
func (e *Engine) PushSale(ctx context.Context, rec models.SaleRecord) error {
	row := models.ToSharedSaleRow(rec)

	pushCtx, cancel := context.WithTimeout(ctx, e.PushTimeout)
	defer cancel()

	if err := e.Shared.UpsertSale(pushCtx, row); err != nil {
		e.parkSale(ctx, row, err)
		return nil
	}

	e.markPushed()
	e.publishEvent(ctx, row)
	return nil
}

// PushVendorStat mirrors the per-vendor counters to the shared store,
// keyed (vendor_id, terminal_id). Same queue-on-failure contract.
func (e *Engine) PushVendorStat(ctx context.Context, stat models.VendorStat) error {
	row := models.SharedVendorStatRow{
		VendorId:   stat.ID,
		TerminalId: e.TerminalID,
		Name:       stat.Name,
		DailySales: stat.DailySales,
		TotalSales: stat.TotalSales,
	}

	pushCtx, cancel := context.WithTimeout(ctx, e.PushTimeout)
	defer cancel()

	if err := e.Shared.UpsertVendorStat(pushCtx, row); err != nil {
		if qErr := models.EnqueueOfflineEntry(ctx, models.QueueEntryKindVendorStat, row); qErr != nil {
			e.logError("PushVendorStat", "enqueue", qErr)
			return qErr
		}
		e.Status.IncPending()
		e.Status.SetOffline(&utils.ConnectivityError{Op: "push vendor stat", Err: err})
		e.Logger.WithFields(logrus.Fields{
			"module":    "syncengine",
			"vendor_id": row.VendorId,
		}).Warn("vendor stat push failed; queued for retry")
		return nil
	}

	e.markPushed()
	return nil
}

// PushSession mirrors the session window to the shared store. Best effort
// and not queued: the row is tiny and every open/close re-pushes it.
func (e *Engine) PushSession(ctx context.Context, session models.Session) {
	pushCtx, cancel := context.WithTimeout(ctx, e.PushTimeout)
	defer cancel()

	if err := e.Shared.UpsertSession(pushCtx, session); err != nil {
		e.logError("PushSession", session.ID, err)
		return
	}
	e.markPushed()
}

func (e *Engine) parkSale(ctx context.Context, row models.SharedSaleRow, pushErr error) {
	if qErr := models.EnqueueOfflineEntry(ctx, models.QueueEntryKindSale, row); qErr != nil {
		// Queueing into the local store should never fail; if it does the
		// sale still exists in the local ledger and the next sweep of the
		// other terminals will miss it until a manual re-push.
		e.logError("PushSale", "enqueue", qErr)
		return
	}
	e.Status.IncPending()
	e.Status.SetOffline(&utils.ConnectivityError{Op: "push sale", Err: pushErr})
	e.Logger.WithFields(logrus.Fields{
		"module":  "syncengine",
		"sale_id": row.ID,
	}).Warn("sale push failed; queued for retry")
}

func (e *Engine) markPushed() {
	e.Status.SetOnline()
	e.Status.MarkSynced(time.Now())
}

// publishEvent notifies the other terminals. Best effort: the periodic
// sweep covers any terminal that misses the event.
func (e *Engine) publishEvent(ctx context.Context, row models.SharedSaleRow) {
	if e.Feed == nil {
		return
	}
	if err := e.Feed.Publish(ctx, row); err != nil {
		e.logError("publishEvent", row.ID, err)
	}
}

func (e *Engine) logError(funcName string, context string, err error) {
	if e.Logger == nil {
		return
	}
	e.Logger.WithFields(logrus.Fields{
		"module":   "syncengine",
		"funcName": funcName,
		"context":  context,
	}).Error(err.Error())
}
