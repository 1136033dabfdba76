package workflow

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"bitbucket.org/mmdatafocus/register_backend/config"
	"bitbucket.org/mmdatafocus/register_backend/models"
	"bitbucket.org/mmdatafocus/register_backend/utils"
)

func backupDir() string {
	return config.StringFromEnv("BACKUP_DIR", "backups")
}

// BuildLedgerWorkbook renders the full local ledger (sales + external
// invoices) as an xlsx. This is the artifact every reset must write before
// anything is zeroed or purged.
func BuildLedgerWorkbook(ctx context.Context) (*excelize.File, error) {
	sales, err := models.GetAllSaleRecords(ctx)
	if err != nil {
		return nil, err
	}
	invoices, err := models.GetAllExternalInvoices(ctx)
	if err != nil {
		return nil, err
	}

	book := excelize.NewFile()

	sheet := "Sales"
	if err := book.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	head := []interface{}{"Id", "Vendor id", "Vendor", "Amount", "Payment", "Created at", "Canceled", "Origin", "Deferred checks"}
	if err := book.SetSheetRow(sheet, "A1", &head); err != nil {
		return nil, err
	}
	for i, sale := range sales {
		deferred := 0
		if sale.CheckDeferralDetail != nil {
			deferred = sale.CheckDeferralDetail.Count
		}
		line := []interface{}{
			sale.ID,
			sale.VendorId,
			sale.VendorName,
			sale.TotalAmount.InexactFloat64(),
			string(sale.PaymentMethod),
			sale.CreatedAt.Format("2006-01-02 15:04:05"),
			sale.Canceled,
			sale.OriginStore,
			deferred,
		}
		if err := book.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &line); err != nil {
			return nil, err
		}
	}

	invoiceSheet := "Invoices"
	if _, err := book.NewSheet(invoiceSheet); err != nil {
		return nil, err
	}
	invoiceHead := []interface{}{"Invoice number", "Vendor", "Amount TTC", "Status", "Created at"}
	if err := book.SetSheetRow(invoiceSheet, "A1", &invoiceHead); err != nil {
		return nil, err
	}
	for i, invoice := range invoices {
		line := []interface{}{
			invoice.InvoiceNumber,
			invoice.VendorDisplayName,
			invoice.TotalAmountTTC.InexactFloat64(),
			string(invoice.Status),
			invoice.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		if err := book.SetSheetRow(invoiceSheet, fmt.Sprintf("A%d", i+2), &line); err != nil {
			return nil, err
		}
	}

	return book, nil
}

// ExportLedgerBackup writes the ledger workbook to the local backup
// directory and, when a bucket is configured, copies it offsite. The local
// write is the hard requirement; the upload failing only logs.
func ExportLedgerBackup(ctx context.Context, label string) (string, error) {
	book, err := BuildLedgerWorkbook(ctx)
	if err != nil {
		return "", err
	}
	defer book.Close()

	var buf bytes.Buffer
	if err := book.Write(&buf); err != nil {
		return "", err
	}

	if err := os.MkdirAll(backupDir(), 0o755); err != nil {
		return "", err
	}
	fileName := fmt.Sprintf("ledger-%s-%s-%s.xlsx",
		label, models.TerminalID(), time.Now().Format("2006-01-02T15-04-05"))
	path := filepath.Join(backupDir(), fileName)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", err
	}

	if utils.BackupUploadEnabled() {
		if err := utils.UploadBackupToGCS(ctx, fileName, buf.Bytes()); err != nil {
			config.LogError(config.GetLogger(), "workflow", "ExportLedgerBackup", "gcs upload", fileName, err)
		}
	}
	return path, nil
}
