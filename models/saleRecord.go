package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/register_backend/config"
	"bitbucket.org/mmdatafocus/register_backend/utils"
)

// SaleRecord is immutable once created except for the one-way canceled
// flag. ID is terminal-assigned and is the sole deduplication key across
// every source (local ledger, shared store, sweep pages, feed events).
type SaleRecord struct {
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
	IsFromOtherTerminal bool                  `gorm:"not null;default:false" json:"is_from_other_terminal"`
	UpdatedAt           time.Time             `gorm:"autoUpdateTime" json:"updated_at"`
}

type SaleItem struct {
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Category  string          `json:"category"`
}

// CheckDeferralDetails describes a check-based sale settled in several
// future installments. Sales carrying this block stay out of the settled
// check bucket; they count toward upcoming settlements instead.
type CheckDeferralDetails struct {
	Count          int             `json:"count"`
	PerCheckAmount decimal.Decimal `json:"per_check_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
}

type NewSaleRecord struct {
	VendorId            string                `json:"vendor_id" binding:"required"`
	VendorName          string                `json:"vendor_name" binding:"required"`
	Items               []SaleItem            `json:"items" binding:"required,min=1"`
	TotalAmount         decimal.Decimal       `json:"total_amount" binding:"required"`
	PaymentMethod       PaymentMethod         `json:"payment_method" binding:"required,paymentmethod"`
	CartMode            CartMode              `json:"cart_mode"`
	CheckDeferralDetail *CheckDeferralDetails `json:"check_deferral_details"`
	ManualInvoiceRef    string                `json:"manual_invoice_ref"`
}

func (input NewSaleRecord) validate() error {
	if strings.TrimSpace(input.VendorId) == "" {
		return &utils.ValidationError{Field: "vendor_id", Reason: "missing vendor"}
	}
	if _, err := ParsePaymentMethod(string(input.PaymentMethod)); err != nil {
		return &utils.ValidationError{Field: "payment_method", Reason: "must be cash, card, check or multi"}
	}
	if input.TotalAmount.IsNegative() {
		return &utils.ValidationError{Field: "total_amount", Reason: "must not be negative"}
	}
	if len(input.Items) == 0 {
		return &utils.ValidationError{Field: "items", Reason: "at least one item is required"}
	}
	if input.CheckDeferralDetail != nil {
		if input.PaymentMethod != PaymentMethodCheck {
			return &utils.ValidationError{Field: "check_deferral_details", Reason: "only valid on check sales"}
		}
		if input.CheckDeferralDetail.Count <= 0 {
			return &utils.ValidationError{Field: "check_deferral_details", Reason: "check count must be positive"}
		}
	}
	return nil
}

// CreateSaleRecord validates the checkout input, assigns a terminal-scoped
// id and writes the sale into the local ledger. Remote propagation is the
// sync engine's business, never the caller's.
func CreateSaleRecord(ctx context.Context, input *NewSaleRecord) (*SaleRecord, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	terminalId, ok := utils.GetTerminalIdFromContext(ctx)
	if !ok || terminalId == "" {
		terminalId = TerminalID()
	}

	cartMode := input.CartMode
	if cartMode == "" {
		cartMode = CartModeStandard
	}

	record := &SaleRecord{
		ID:                  uuid.NewString(),
		VendorId:            strings.TrimSpace(input.VendorId),
		VendorName:          strings.TrimSpace(input.VendorName),
		Items:               input.Items,
		TotalAmount:         input.TotalAmount,
		PaymentMethod:       input.PaymentMethod,
		CreatedAt:           time.Now(),
		CartMode:            cartMode,
		OriginStore:         terminalId,
		CheckDeferralDetail: input.CheckDeferralDetail,
		ManualInvoiceRef:    strings.TrimSpace(input.ManualInvoiceRef),
	}

	db := config.GetLocalDB()
	if err := db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// CancelSaleRecord flips the one-way cancel flag. There is no un-cancel
// path anywhere in this system. The bool reports whether this call flipped
// the flag: a repeated cancel is a no-op and callers must not apply the
// counter delta again.
func CancelSaleRecord(ctx context.Context, id string) (*SaleRecord, bool, error) {
	db := config.GetLocalDB()

	var record SaleRecord
	if err := db.WithContext(ctx).Where("id = ?", id).Take(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, utils.ErrorRecordNotFound
		}
		return nil, false, err
	}
	if record.Canceled {
		return &record, false, nil
	}

	if err := db.WithContext(ctx).Model(&SaleRecord{}).
		Where("id = ?", id).
		Update("canceled", true).Error; err != nil {
		return nil, false, err
	}
	record.Canceled = true
	return &record, true, nil
}

func GetSaleRecord(ctx context.Context, id string) (*SaleRecord, error) {
	var record SaleRecord
	err := config.GetLocalDB().WithContext(ctx).Where("id = ?", id).Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &record, nil
}

func SaleRecordExists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := config.GetLocalDB().WithContext(ctx).Model(&SaleRecord{}).
		Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// GetAllSaleRecords returns the full local ledger, oldest first. Used as
// the authoritative post-restart snapshot by the aggregator.
func GetAllSaleRecords(ctx context.Context) ([]SaleRecord, error) {
	var records []SaleRecord
	err := config.GetLocalDB().WithContext(ctx).
		Order("created_at ASC").Find(&records).Error
	return records, err
}

// InsertRemoteSaleRecord applies a sale learned from another terminal.
// Dedup is by id only: unknown ids are inserted tagged as foreign, known
// ids are left untouched except that a canceled=true event is applied
// (cancellation is one-way, so this can never flap).
func InsertRemoteSaleRecord(ctx context.Context, record SaleRecord) (bool, error) {
	db := config.GetLocalDB()

	var existing SaleRecord
	err := db.WithContext(ctx).Where("id = ?", record.ID).Take(&existing).Error
	if err == nil {
		if record.Canceled && !existing.Canceled {
			return false, db.WithContext(ctx).Model(&SaleRecord{}).
				Where("id = ?", record.ID).
				Update("canceled", true).Error
		}
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	record.IsFromOtherTerminal = true
	if err := db.WithContext(ctx).Create(&record).Error; err != nil {
		return false, err
	}
	return true, nil
}

// PurgeSaleRecords deletes the local ledger. Only the end-of-session reset
// workflow calls this, after the backup export has settled.
func PurgeSaleRecords(ctx context.Context) error {
	return config.GetLocalDB().WithContext(ctx).
		Where("1 = 1").Delete(&SaleRecord{}).Error
}
