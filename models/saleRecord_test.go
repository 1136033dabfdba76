package models_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bitbucket.org/mmdatafocus/register_backend/config"
	"bitbucket.org/mmdatafocus/register_backend/models"
)

func openTestStore(t *testing.T) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	config.SetLocalDB(db)
	models.ResetTerminalIDForTest()
	models.MigrateLocalTables()

	t.Cleanup(func() {
		_ = sqlDB.Close()
		config.SetLocalDB(nil)
		models.ResetTerminalIDForTest()
	})
}

func newSaleInput(vendorId string, amount string) *models.NewSaleRecord {
	return &models.NewSaleRecord{
		VendorId:      vendorId,
		VendorName:    "Vendor " + vendorId,
		Items:         []models.SaleItem{{Name: "item", UnitPrice: decimal.RequireFromString(amount), Quantity: 1}},
		TotalAmount:   decimal.RequireFromString(amount),
		PaymentMethod: models.PaymentMethodCash,
	}
}

func TestTerminalIDSurvivesReload(t *testing.T) {
	openTestStore(t)

	first := models.TerminalID()
	if first == "" {
		t.Fatal("expected a generated terminal id")
	}

	// Same store, fresh process-level cache: the id must come back
	// identical, not regenerate.
	models.ResetTerminalIDForTest()
	second := models.TerminalID()
	if second != first {
		t.Fatalf("terminal id changed across reload: %q then %q", first, second)
	}
}

func TestCancelSaleRecordIsOneWay(t *testing.T) {
	openTestStore(t)
	ctx := context.Background()

	record, err := models.CreateSaleRecord(ctx, newSaleInput("v1", "40"))
	if err != nil {
		t.Fatalf("CreateSaleRecord: %v", err)
	}

	canceled, flipped, err := models.CancelSaleRecord(ctx, record.ID)
	if err != nil {
		t.Fatalf("CancelSaleRecord: %v", err)
	}
	if !canceled.Canceled || !flipped {
		t.Fatal("first cancel must set the flag and report the flip")
	}

	// Second cancel is a no-op, not an error, and must not report a flip.
	again, flipped, err := models.CancelSaleRecord(ctx, record.ID)
	if err != nil {
		t.Fatalf("second CancelSaleRecord: %v", err)
	}
	if !again.Canceled {
		t.Fatal("cancel flag must never clear")
	}
	if flipped {
		t.Fatal("repeated cancel must not report a flip")
	}

	// A non-canceled remote copy of the same sale must not clear the flag.
	if _, err := models.InsertRemoteSaleRecord(ctx, models.SaleRecord{
		ID:          record.ID,
		VendorId:    record.VendorId,
		VendorName:  record.VendorName,
		TotalAmount: record.TotalAmount,
		Canceled:    false,
		OriginStore: "other-terminal",
		CreatedAt:   record.CreatedAt,
	}); err != nil {
		t.Fatalf("InsertRemoteSaleRecord: %v", err)
	}
	got, err := models.GetSaleRecord(ctx, record.ID)
	if err != nil {
		t.Fatalf("GetSaleRecord: %v", err)
	}
	if !got.Canceled {
		t.Fatal("remote merge cleared the cancel flag")
	}
}

func TestInsertRemoteSaleRecordDedup(t *testing.T) {
	openTestStore(t)
	ctx := context.Background()

	remote := models.SaleRecord{
		ID:            "sale-200",
		VendorId:      "v1",
		VendorName:    "Vendor v1",
		TotalAmount:   decimal.RequireFromString("200"),
		PaymentMethod: models.PaymentMethodCard,
		OriginStore:   "terminal-b",
		CreatedAt:     time.Now(),
	}

	inserted, err := models.InsertRemoteSaleRecord(ctx, remote)
	if err != nil {
		t.Fatalf("InsertRemoteSaleRecord: %v", err)
	}
	if !inserted {
		t.Fatal("expected first merge to insert")
	}

	// Redelivery of the same id inserts nothing.
	inserted, err = models.InsertRemoteSaleRecord(ctx, remote)
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if inserted {
		t.Fatal("duplicate id must not insert twice")
	}

	got, err := models.GetSaleRecord(ctx, remote.ID)
	if err != nil {
		t.Fatalf("GetSaleRecord: %v", err)
	}
	if !got.IsFromOtherTerminal {
		t.Fatal("merged row must be tagged as foreign")
	}

	// A later canceled=true delivery flips the flag on the existing row.
	remote.Canceled = true
	if _, err := models.InsertRemoteSaleRecord(ctx, remote); err != nil {
		t.Fatalf("cancel delivery: %v", err)
	}
	got, err = models.GetSaleRecord(ctx, remote.ID)
	if err != nil {
		t.Fatalf("GetSaleRecord after cancel: %v", err)
	}
	if !got.Canceled {
		t.Fatal("cancel event was not applied to the known id")
	}

	all, err := models.GetAllSaleRecords(ctx)
	if err != nil {
		t.Fatalf("GetAllSaleRecords: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected exactly one ledger row, got %d", len(all))
	}
}

func TestCreateSaleRecordValidation(t *testing.T) {
	openTestStore(t)
	ctx := context.Background()

	input := newSaleInput("v1", "10")
	input.CheckDeferralDetail = &models.CheckDeferralDetails{Count: 3}
	if _, err := models.CreateSaleRecord(ctx, input); err == nil {
		t.Fatal("deferral block on a cash sale must be rejected")
	}

	input = newSaleInput("", "10")
	if _, err := models.CreateSaleRecord(ctx, input); err == nil {
		t.Fatal("missing vendor must be rejected")
	}
}
