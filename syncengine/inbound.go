package syncengine

import (
	"context"

	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/register_backend/aggregator"
	"bitbucket.org/mmdatafocus/register_backend/models"
)

// HandleRemoteSale reconciles one shared-store row into the local ledger.
// Own-origin rows are discarded (the local write path already applied
// them); everything else is a dedup-by-id insert. Both the feed and the
// sweep funnel through here, so their interleaving is harmless.
func (e *Engine) HandleRemoteSale(ctx context.Context, row models.SharedSaleRow) {
	if row.OriginStore == e.TerminalID {
		return
	}

	inserted, err := models.InsertRemoteSaleRecord(ctx, models.FromSharedSaleRow(row))
	if err != nil {
		e.logError("HandleRemoteSale", row.ID, err)
		return
	}
	if inserted {
		e.Logger.WithFields(logrus.Fields{
			"module":       "syncengine",
			"sale_id":      row.ID,
			"origin_store": row.OriginStore,
		}).Info("sale received from other terminal")
		// Merged rows change every report, so the memo cache is stale.
		aggregator.InvalidateReportCache()
	}
}

// RunSubscriber blocks on the sale feed until ctx is done, reconnecting
// with backoff if the subscription drops. The periodic sweep covers any
// events lost across reconnects.
func (e *Engine) RunSubscriber(ctx context.Context) {
	if e.Feed == nil {
		return
	}
	backoffLoop(ctx, func(ctx context.Context) error {
		return e.Feed.Subscribe(ctx, func(row models.SharedSaleRow) {
			e.HandleRemoteSale(ctx, row)
		})
	}, func(err error) {
		e.logError("RunSubscriber", "subscription dropped", err)
	})
}
