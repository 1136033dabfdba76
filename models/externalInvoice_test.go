package models_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/register_backend/models"
)

func TestUpsertExternalInvoiceRedelivery(t *testing.T) {
	openTestStore(t)
	ctx := context.Background()

	invoice := &models.ExternalInvoiceRecord{
		InvoiceNumber:     "INV-42",
		VendorDisplayName: "Café Zoë",
		TotalAmountTTC:    decimal.RequireFromString("75.50"),
		CreatedAt:         time.Now(),
		Status:            models.InvoiceStatusCompleted,
	}

	if err := models.UpsertExternalInvoice(ctx, invoice); err != nil {
		t.Fatalf("UpsertExternalInvoice: %v", err)
	}
	// Webhook redelivery of the same invoice number.
	if err := models.UpsertExternalInvoice(ctx, invoice); err != nil {
		t.Fatalf("redelivery: %v", err)
	}

	all, err := models.GetAllExternalInvoices(ctx)
	if err != nil {
		t.Fatalf("GetAllExternalInvoices: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected one invoice row, got %d", len(all))
	}

	// A later cancellation updates the stored status.
	update := *invoice
	update.Status = models.InvoiceStatusCanceled
	if err := models.UpsertExternalInvoice(ctx, &update); err != nil {
		t.Fatalf("cancel update: %v", err)
	}
	all, err = models.GetAllExternalInvoices(ctx)
	if err != nil {
		t.Fatalf("GetAllExternalInvoices: %v", err)
	}
	if len(all) != 1 || all[0].Status != models.InvoiceStatusCanceled {
		t.Fatalf("cancel not applied: %+v", all)
	}
}

func TestUpsertExternalInvoiceValidation(t *testing.T) {
	openTestStore(t)
	ctx := context.Background()

	bad := &models.ExternalInvoiceRecord{
		VendorDisplayName: "No Number",
		TotalAmountTTC:    decimal.RequireFromString("10"),
		Status:            models.InvoiceStatusCompleted,
	}
	if err := models.UpsertExternalInvoice(ctx, bad); err == nil {
		t.Fatal("missing invoice number must be rejected")
	}

	bad = &models.ExternalInvoiceRecord{
		InvoiceNumber:     "INV-43",
		VendorDisplayName: "Vendor",
		TotalAmountTTC:    decimal.RequireFromString("10"),
		Status:            "paid",
	}
	if err := models.UpsertExternalInvoice(ctx, bad); err == nil {
		t.Fatal("unknown status must be rejected")
	}
}
