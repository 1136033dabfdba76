package syncengine

import (
	"context"

	"bitbucket.org/mmdatafocus/register_backend/models"
)

// SharedStore is the remote, multi-terminal-visible store. All writes are
// upserts by primary key; reads are bounded recency pages. Implementations:
// the gorm-backed store (production) and the in-memory store (dev mode and
// tests).
type SharedStore interface {
	UpsertSale(ctx context.Context, row models.SharedSaleRow) error
	UpsertVendorStat(ctx context.Context, row models.SharedVendorStatRow) error
	UpsertSession(ctx context.Context, session models.Session) error
	RecentSales(ctx context.Context, limit int) ([]models.SharedSaleRow, error)
	Ping(ctx context.Context) error
}

// SaleFeed is the sale-insert event stream. Publish happens after a
// successful shared-store upsert; Subscribe blocks until ctx is done and
// invokes the handler once per delivered event. Delivery order is not
// guaranteed; the merge is dedup-by-id so any interleaving converges.
type SaleFeed interface {
	Publish(ctx context.Context, row models.SharedSaleRow) error
	Subscribe(ctx context.Context, handler func(models.SharedSaleRow)) error
}
