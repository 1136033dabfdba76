package models

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"

	"bitbucket.org/mmdatafocus/register_backend/config"
	"bitbucket.org/mmdatafocus/register_backend/utils"
)

// ExternalInvoiceRecord is a sale-equivalent arriving from the separate
// invoicing channel. InvoiceNumber is the dedup key within that channel;
// VendorDisplayName is free text and goes through the aggregator's
// normalization before attribution.
type ExternalInvoiceRecord struct {
	InvoiceNumber     string            `gorm:"primaryKey;size:128" json:"invoice_number"`
	VendorDisplayName string            `gorm:"size:255;not null" json:"vendor_display_name"`
	TotalAmountTTC    decimal.Decimal   `gorm:"type:decimal(20,4);not null" json:"total_amount_ttc"`
	CreatedAt         time.Time         `gorm:"index;not null" json:"created_at"`
	LineItems         []InvoiceLineItem `gorm:"serializer:json" json:"line_items"`
	Status            InvoiceStatus     `gorm:"size:16;not null" json:"status"`
	UpdatedAt         time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

type InvoiceLineItem struct {
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
}

func (rec ExternalInvoiceRecord) validate() error {
	if strings.TrimSpace(rec.InvoiceNumber) == "" {
		return &utils.ValidationError{Field: "invoice_number", Reason: "required"}
	}
	if strings.TrimSpace(rec.VendorDisplayName) == "" {
		return &utils.ValidationError{Field: "vendor_display_name", Reason: "required"}
	}
	switch rec.Status {
	case InvoiceStatusCompleted, InvoiceStatusCanceled, InvoiceStatusOther:
	default:
		return &utils.ValidationError{Field: "status", Reason: "must be completed, canceled or other"}
	}
	return nil
}

// UpsertExternalInvoice applies a webhook delivery. Redelivery of the same
// invoice number is safe; a canceled status update for a known invoice is
// applied (the invoicing channel's counterpart of the sale cancel flag).
func UpsertExternalInvoice(ctx context.Context, rec *ExternalInvoiceRecord) error {
	if err := rec.validate(); err != nil {
		return err
	}
	return config.GetLocalDB().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "invoice_number"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "total_amount_ttc", "updated_at"}),
		}).Create(rec).Error
}

func GetAllExternalInvoices(ctx context.Context) ([]ExternalInvoiceRecord, error) {
	var records []ExternalInvoiceRecord
	err := config.GetLocalDB().WithContext(ctx).
		Order("created_at ASC").Find(&records).Error
	return records, err
}

// PurgeExternalInvoices clears the channel cache. Only the end-of-session
// reset calls this.
func PurgeExternalInvoices(ctx context.Context) error {
	return config.GetLocalDB().WithContext(ctx).
		Where("1 = 1").Delete(&ExternalInvoiceRecord{}).Error
}
