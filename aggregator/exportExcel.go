package aggregator

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"bitbucket.org/mmdatafocus/register_backend/models"
)

var paymentColumns = []models.PaymentMethod{
	models.PaymentMethodCash,
	models.PaymentMethodCard,
	models.PaymentMethodCheck,
	models.PaymentMethodMulti,
}

// BuildReportWorkbook renders a report as a two-sheet workbook: the
// per-vendor breakdown and, when present, the unattributed amounts.
func BuildReportWorkbook(report *Report) (*excelize.File, error) {
	book := excelize.NewFile()

	sheet := "Report"
	if err := book.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	header := []interface{}{"Vendor", "Sales", "Invoices", "Total"}
	for _, method := range paymentColumns {
		header = append(header, string(method))
	}
	if err := book.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}

	row := 2
	for _, vendor := range report.Vendors {
		line := []interface{}{
			vendor.VendorName,
			vendor.SaleCount,
			vendor.InvoiceCount,
			vendor.Total.InexactFloat64(),
		}
		for _, method := range paymentColumns {
			line = append(line, vendor.ByPayment[method].InexactFloat64())
		}
		if err := book.SetSheetRow(sheet, fmt.Sprintf("A%d", row), &line); err != nil {
			return nil, err
		}
		row++
	}

	row++
	summary := [][]interface{}{
		{"Window", string(report.Window.Kind)},
		{"Generated at", report.GeneratedAt.Format("2006-01-02 15:04:05")},
		{"Sales", report.SaleCount},
		{"Invoices", report.InvoiceCount},
		{"Total", report.TotalAmount.InexactFloat64()},
		{"Upcoming settlements", report.UpcomingSettlements.InexactFloat64()},
	}
	for _, line := range summary {
		if err := book.SetSheetRow(sheet, fmt.Sprintf("A%d", row), &line); err != nil {
			return nil, err
		}
		row++
	}

	if len(report.Unattributed) > 0 {
		sheet := "Unattributed"
		if _, err := book.NewSheet(sheet); err != nil {
			return nil, err
		}
		head := []interface{}{"Source", "Key", "Raw name", "Amount"}
		if err := book.SetSheetRow(sheet, "A1", &head); err != nil {
			return nil, err
		}
		for i, entry := range report.Unattributed {
			line := []interface{}{entry.Source, entry.Key, entry.RawName, entry.Amount.InexactFloat64()}
			if err := book.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &line); err != nil {
				return nil, err
			}
		}
	}

	return book, nil
}
