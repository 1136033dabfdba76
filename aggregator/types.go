package aggregator

import (
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/register_backend/models"
)

type WindowKind string

const (
	WindowToday   WindowKind = "today"
	WindowSession WindowKind = "session"
)

// Window describes which sales a report covers. Today windows keep sales
// sharing the reference calendar date and created after the last daily
// reset cutoff. Session windows keep sales inside the event bounds.
type Window struct {
	Kind          WindowKind `json:"kind"`
	Reference     time.Time  `json:"reference"`
	LastRAZCutoff time.Time  `json:"lastRazCutoff,omitempty"`
	SessionStart  time.Time  `json:"sessionStart,omitempty"`
	SessionEnd    time.Time  `json:"sessionEnd,omitempty"`
}

// Contains reports whether a sale created at the given time falls inside
// the window. A zero cutoff means no reset has ever run.
func (w Window) Contains(createdAt time.Time) bool {
	switch w.Kind {
	case WindowSession:
		return !createdAt.Before(w.SessionStart) && !createdAt.After(w.SessionEnd)
	default:
		ry, rm, rd := w.Reference.Date()
		cy, cm, cd := createdAt.Date()
		if ry != cy || rm != cm || rd != cd {
			return false
		}
		return w.LastRAZCutoff.IsZero() || createdAt.After(w.LastRAZCutoff)
	}
}

// VendorReport is one vendor's slice of the aggregate.
type VendorReport struct {
	VendorId     string                                   `json:"vendorId"`
	VendorName   string                                   `json:"vendorName"`
	SaleCount    int                                      `json:"saleCount"`
	InvoiceCount int                                      `json:"invoiceCount"`
	Total        decimal.Decimal                          `json:"total"`
	ByPayment    map[models.PaymentMethod]decimal.Decimal `json:"byPayment"`
}

// UnattributedEntry records an amount that matched no vendor under any
// attribution rule. It stays in the report so totals keep adding up.
type UnattributedEntry struct {
	Source  string          `json:"source"`
	Key     string          `json:"key"`
	RawName string          `json:"rawName"`
	Amount  decimal.Decimal `json:"amount"`
}

// Report is the aggregate view served to the register UI.
type Report struct {
	Window              Window              `json:"window"`
	GeneratedAt         time.Time           `json:"generatedAt"`
	AliasTableVersion   int                 `json:"aliasTableVersion"`
	Vendors             []VendorReport      `json:"vendors"`
	Unattributed        []UnattributedEntry `json:"unattributed"`
	TotalAmount         decimal.Decimal     `json:"totalAmount"`
	SaleCount           int                 `json:"saleCount"`
	InvoiceCount        int                 `json:"invoiceCount"`
	UpcomingSettlements decimal.Decimal     `json:"upcomingSettlements"`
	SettlementCount     int                 `json:"settlementCount"`
}

// Input holds everything BuildReport needs. CacheSales is the fast local
// view, StoredSales the durable rows: on id collision the stored row wins.
type Input struct {
	CacheSales  []models.SaleRecord
	StoredSales []models.SaleRecord
	Invoices    []models.ExternalInvoiceRecord
	Roster      []models.VendorStat
	Aliases     AliasTable
	Window      Window
	Now         time.Time
}
