package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SharedSaleRow is the shared-store shape of a sale. The write path is
// always an upsert-by-id, so repeated pushes of the same sale are safe.
type SharedSaleRow struct {
	ID                  string                `gorm:"primaryKey;size:64" json:"id"`
	VendorId            string                `gorm:"index;size:64;not null" json:"vendor_id"`
	VendorName          string                `gorm:"size:255;not null" json:"vendor_name"`
	Items               []SaleItem            `gorm:"serializer:json" json:"items"`
	TotalAmount         decimal.Decimal       `gorm:"type:decimal(20,4);not null" json:"total_amount"`
	PaymentMethod       PaymentMethod         `gorm:"size:16;not null" json:"payment_method"`
	CreatedAt           time.Time             `gorm:"index;not null" json:"created_at"`
	Canceled            bool                  `gorm:"not null;default:false" json:"canceled"`
	CartMode            CartMode              `gorm:"size:16;not null;default:standard" json:"cart_mode"`
	OriginStore         string                `gorm:"index;size:64;not null" json:"origin_store"`
	CheckDeferralDetail *CheckDeferralDetails `gorm:"serializer:json" json:"check_deferral_details,omitempty"`
	ManualInvoiceRef    string                `gorm:"size:128" json:"manual_invoice_ref,omitempty"`
	UpdatedAt           time.Time             `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SharedSaleRow) TableName() string { return "shared_sales" }

// SharedVendorStatRow is keyed (vendor_id, terminal_id) so two terminals
// never collide on the same row.
type SharedVendorStatRow struct {
	VendorId   string          `gorm:"primaryKey;size:64" json:"vendor_id"`
	TerminalId string          `gorm:"primaryKey;size:64" json:"terminal_id"`
	Name       string          `gorm:"size:255;not null" json:"name"`
	DailySales decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"daily_sales"`
	TotalSales decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_sales"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SharedVendorStatRow) TableName() string { return "shared_vendor_stats" }

func ToSharedSaleRow(rec SaleRecord) SharedSaleRow {
	return SharedSaleRow{
		ID:                  rec.ID,
		VendorId:            rec.VendorId,
		VendorName:          rec.VendorName,
		Items:               rec.Items,
		TotalAmount:         rec.TotalAmount,
		PaymentMethod:       rec.PaymentMethod,
		CreatedAt:           rec.CreatedAt,
		Canceled:            rec.Canceled,
		CartMode:            rec.CartMode,
		OriginStore:         rec.OriginStore,
		CheckDeferralDetail: rec.CheckDeferralDetail,
		ManualInvoiceRef:    rec.ManualInvoiceRef,
	}
}

func FromSharedSaleRow(row SharedSaleRow) SaleRecord {
	return SaleRecord{
		ID:                  row.ID,
		VendorId:            row.VendorId,
		VendorName:          row.VendorName,
		Items:               row.Items,
		TotalAmount:         row.TotalAmount,
		PaymentMethod:       row.PaymentMethod,
		CreatedAt:           row.CreatedAt,
		Canceled:            row.Canceled,
		CartMode:            row.CartMode,
		OriginStore:         row.OriginStore,
		CheckDeferralDetail: row.CheckDeferralDetail,
		ManualInvoiceRef:    row.ManualInvoiceRef,
	}
}
