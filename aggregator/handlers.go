package aggregator

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/register_backend/config"
	"bitbucket.org/mmdatafocus/register_backend/models"
	"bitbucket.org/mmdatafocus/register_backend/utils"
)

// LoadInput gathers everything a report needs from the local ledger.
// Vendor counters are deliberately absent: the report is re-derived from
// the sale set, the counters are only a display cache.
func LoadInput(ctx *gin.Context, kind WindowKind) (*Input, string, error) {
	sales, err := models.GetAllSaleRecords(ctx.Request.Context())
	if err != nil {
		return nil, "", err
	}
	invoices, err := models.GetAllExternalInvoices(ctx.Request.Context())
	if err != nil {
		return nil, "", err
	}
	roster, err := models.GetAllVendorStats(ctx.Request.Context())
	if err != nil {
		return nil, "", err
	}

	now := time.Now()
	window := Window{Kind: kind, Reference: now}
	sessionId := ""

	switch kind {
	case WindowSession:
		session, err := models.GetActiveSession(ctx.Request.Context())
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				return nil, "", &utils.ValidationError{Field: "window", Reason: "no open session"}
			}
			return nil, "", err
		}
		window.SessionStart = session.EventStart
		window.SessionEnd = session.EventEnd
		sessionId = session.ID
	default:
		cutoff, err := models.GetLastRAZCutoff(ctx.Request.Context())
		if err != nil {
			return nil, "", err
		}
		window.LastRAZCutoff = cutoff
	}

	return &Input{
		StoredSales: sales,
		Invoices:    invoices,
		Roster:      roster,
		Aliases:     DefaultAliasTable(),
		Window:      window,
		Now:         now,
	}, sessionId, nil
}

func parseWindowKind(c *gin.Context) (WindowKind, bool) {
	switch c.DefaultQuery("window", string(WindowToday)) {
	case string(WindowToday):
		return WindowToday, true
	case string(WindowSession):
		return WindowSession, true
	default:
		return "", false
	}
}

// AggregateReportHandler serves GET /api/reports/aggregate. Reports are
// memoized in Redis for a short TTL; any sale write or remote merge blows
// the whole prefix away.
func AggregateReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		kind, ok := parseWindowKind(c)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "window must be today or session"})
			return
		}

		in, sessionId, err := LoadInput(c, kind)
		if err != nil {
			if utils.IsValidationError(err) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			config.LogError(config.GetLogger(), "aggregator", "AggregateReportHandler", "load", string(kind), err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build report"})
			return
		}

		cacheKey := reportCacheKey(in.Window, sessionId)
		if report, hit := cachedReport(cacheKey); hit {
			c.JSON(http.StatusOK, report)
			return
		}

		report := BuildReport(*in)
		logUnattributed(report)
		storeReport(cacheKey, report)
		c.JSON(http.StatusOK, report)
	}
}

// ExportReportHandler serves the same aggregate as an xlsx download.
func ExportReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		kind, ok := parseWindowKind(c)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "window must be today or session"})
			return
		}

		in, _, err := LoadInput(c, kind)
		if err != nil {
			if utils.IsValidationError(err) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			config.LogError(config.GetLogger(), "aggregator", "ExportReportHandler", "load", string(kind), err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build report"})
			return
		}

		report := BuildReport(*in)
		logUnattributed(report)

		book, err := BuildReportWorkbook(report)
		if err != nil {
			config.LogError(config.GetLogger(), "aggregator", "ExportReportHandler", "workbook", string(kind), err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render export"})
			return
		}
		defer book.Close()

		fileName := fmt.Sprintf("report-%s-%s.xlsx", kind, report.GeneratedAt.Format("2006-01-02"))
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, fileName))
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		if err := book.Write(c.Writer); err != nil {
			config.LogError(config.GetLogger(), "aggregator", "ExportReportHandler", "write", fileName, err)
		}
	}
}

// SettlementsHandler lists the deferred-check sales still waiting to be
// cashed, newest first.
func SettlementsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		sales, err := models.GetAllSaleRecords(c.Request.Context())
		if err != nil {
			config.LogError(config.GetLogger(), "aggregator", "SettlementsHandler", "load", "", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list settlements"})
			return
		}

		settlements := make([]models.SaleRecord, 0)
		for i := len(sales) - 1; i >= 0; i-- {
			sale := sales[i]
			if sale.Canceled || sale.CheckDeferralDetail == nil {
				continue
			}
			settlements = append(settlements, sale)
		}
		c.JSON(http.StatusOK, gin.H{"settlements": settlements, "count": len(settlements)})
	}
}

func logUnattributed(report *Report) {
	for _, entry := range report.Unattributed {
		config.GetLogger().WithFields(logrus.Fields{
			"module":   "aggregator",
			"funcName": "BuildReport",
			"source":   entry.Source,
			"key":      entry.Key,
			"raw_name": entry.RawName,
		}).Warn("amount attributed to no vendor")
	}
}
