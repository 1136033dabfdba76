package aggregator

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/register_backend/models"
)

// BuildReport derives the aggregate strictly from its inputs; nothing is
// read from counters or globals, so two terminals holding the same sale
// set always render the same report.
//
// Merge order: cache rows first, durable rows second, keyed by sale id.
// Whatever the durable store says about an id wins over the cache.
func BuildReport(in Input) *Report {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	merged := make(map[string]models.SaleRecord, len(in.CacheSales)+len(in.StoredSales))
	order := make([]string, 0, len(merged))
	for _, sale := range in.CacheSales {
		if _, seen := merged[sale.ID]; !seen {
			order = append(order, sale.ID)
		}
		merged[sale.ID] = sale
	}
	for _, sale := range in.StoredSales {
		if _, seen := merged[sale.ID]; !seen {
			order = append(order, sale.ID)
		}
		merged[sale.ID] = sale
	}

	byId := make(map[string]*VendorReport, len(in.Roster))
	byNormalizedName := make(map[string]*VendorReport, len(in.Roster))
	vendors := make([]*VendorReport, 0, len(in.Roster))
	for _, stat := range in.Roster {
		report := &VendorReport{
			VendorId:   stat.ID,
			VendorName: stat.Name,
			Total:      decimal.Zero,
			ByPayment:  map[models.PaymentMethod]decimal.Decimal{},
		}
		vendors = append(vendors, report)
		byId[stat.ID] = report
		byNormalizedName[NormalizeVendorName(stat.Name)] = report
	}

	out := &Report{
		Window:              in.Window,
		GeneratedAt:         now,
		AliasTableVersion:   in.Aliases.Version,
		TotalAmount:         decimal.Zero,
		UpcomingSettlements: decimal.Zero,
	}

	for _, id := range order {
		sale := merged[id]
		if sale.Canceled || !in.Window.Contains(sale.CreatedAt) {
			continue
		}

		target := byId[sale.VendorId]
		if target == nil {
			target = byNormalizedName[in.Aliases.Resolve(sale.VendorName)]
		}

		amount := sale.TotalAmount
		deferred := sale.PaymentMethod == models.PaymentMethodCheck && sale.CheckDeferralDetail != nil
		if deferred {
			if !sale.CheckDeferralDetail.TotalAmount.IsZero() {
				amount = sale.CheckDeferralDetail.TotalAmount
			}
			out.UpcomingSettlements = out.UpcomingSettlements.Add(amount)
			out.SettlementCount++
		}

		out.SaleCount++
		out.TotalAmount = out.TotalAmount.Add(amount)

		if target == nil {
			out.Unattributed = append(out.Unattributed, UnattributedEntry{
				Source:  "sale",
				Key:     sale.ID,
				RawName: sale.VendorName,
				Amount:  amount,
			})
			continue
		}

		target.SaleCount++
		target.Total = target.Total.Add(amount)
		if !deferred {
			bucket := sale.PaymentMethod
			target.ByPayment[bucket] = target.ByPayment[bucket].Add(amount)
		}
	}

	for _, invoice := range in.Invoices {
		if invoice.Status == models.InvoiceStatusCanceled || !in.Window.Contains(invoice.CreatedAt) {
			continue
		}

		out.InvoiceCount++
		out.TotalAmount = out.TotalAmount.Add(invoice.TotalAmountTTC)

		target := byNormalizedName[in.Aliases.Resolve(invoice.VendorDisplayName)]
		if target == nil {
			out.Unattributed = append(out.Unattributed, UnattributedEntry{
				Source:  "invoice",
				Key:     invoice.InvoiceNumber,
				RawName: invoice.VendorDisplayName,
				Amount:  invoice.TotalAmountTTC,
			})
			continue
		}
		target.InvoiceCount++
		target.Total = target.Total.Add(invoice.TotalAmountTTC)
	}

	sort.Slice(vendors, func(i, j int) bool {
		if !vendors[i].Total.Equal(vendors[j].Total) {
			return vendors[i].Total.GreaterThan(vendors[j].Total)
		}
		return vendors[i].VendorName < vendors[j].VendorName
	})
	out.Vendors = make([]VendorReport, 0, len(vendors))
	for _, v := range vendors {
		out.Vendors = append(out.Vendors, *v)
	}
	return out
}
