package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/register_backend/config"
	"bitbucket.org/mmdatafocus/register_backend/utils"
)

// VendorStat carries the running per-vendor counters. DailySales is zeroed
// by the daily RAZ, TotalSales only by the end-of-session RAZ. Counters are
// only ever moved by the signed delta of a sale's total at creation or
// cancellation time; the aggregator re-derives the truth from the sale set
// and treats these as a fast-path cache.
type VendorStat struct {
	ID         string          `gorm:"primaryKey;size:64" json:"id"`
	Name       string          `gorm:"size:255;not null" json:"name"`
	DailySales decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"daily_sales"`
	TotalSales decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_sales"`
	Color      string          `gorm:"size:32" json:"color"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewVendorStat struct {
	ID    string `json:"id" binding:"required"`
	Name  string `json:"name" binding:"required"`
	Color string `json:"color"`
}

func CreateVendorStat(ctx context.Context, input *NewVendorStat) (*VendorStat, error) {
	if strings.TrimSpace(input.ID) == "" || strings.TrimSpace(input.Name) == "" {
		return nil, &utils.ValidationError{Field: "vendor", Reason: "id and name are required"}
	}
	stat := &VendorStat{
		ID:         strings.TrimSpace(input.ID),
		Name:       strings.TrimSpace(input.Name),
		DailySales: decimal.Zero,
		TotalSales: decimal.Zero,
		Color:      input.Color,
	}
	if err := config.GetLocalDB().WithContext(ctx).Create(stat).Error; err != nil {
		return nil, err
	}
	return stat, nil
}

func GetVendorStat(ctx context.Context, id string) (*VendorStat, error) {
	var stat VendorStat
	err := config.GetLocalDB().WithContext(ctx).Where("id = ?", id).Take(&stat).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &stat, nil
}

func GetAllVendorStats(ctx context.Context) ([]VendorStat, error) {
	var stats []VendorStat
	err := config.GetLocalDB().WithContext(ctx).Order("name ASC").Find(&stats).Error
	return stats, err
}

// ApplySaleDelta adjusts both counters by the signed delta of a sale's
// total amount. Pass the negated amount on cancellation.
func ApplySaleDelta(ctx context.Context, vendorId string, delta decimal.Decimal) (*VendorStat, error) {
	db := config.GetLocalDB()
	err := db.WithContext(ctx).Model(&VendorStat{}).
		Where("id = ?", vendorId).
		Updates(map[string]interface{}{
			"daily_sales": gorm.Expr("daily_sales + ?", delta),
			"total_sales": gorm.Expr("total_sales + ?", delta),
		}).Error
	if err != nil {
		return nil, err
	}
	return GetVendorStat(ctx, vendorId)
}

// ResetDailySales zeroes the daily counters for every vendor. Called by the
// daily RAZ only.
func ResetDailySales(ctx context.Context) error {
	return config.GetLocalDB().WithContext(ctx).Model(&VendorStat{}).
		Where("1 = 1").
		Update("daily_sales", decimal.Zero).Error
}

// ResetAllSales zeroes both counters. Called by the end-of-session RAZ only.
func ResetAllSales(ctx context.Context) error {
	return config.GetLocalDB().WithContext(ctx).Model(&VendorStat{}).
		Where("1 = 1").
		Updates(map[string]interface{}{
			"daily_sales": decimal.Zero,
			"total_sales": decimal.Zero,
		}).Error
}
