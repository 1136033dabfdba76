package invoicing

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/register_backend/aggregator"
	"bitbucket.org/mmdatafocus/register_backend/config"
	"bitbucket.org/mmdatafocus/register_backend/models"
	"bitbucket.org/mmdatafocus/register_backend/utils"
)

// InvoiceWebhookPayload is the external invoicing channel's delivery shape.
// Redeliveries of the same invoice number are expected and safe.
type InvoiceWebhookPayload struct {
	InvoiceNumber     string                   `json:"invoice_number" binding:"required"`
	VendorDisplayName string                   `json:"vendor_display_name" binding:"required"`
	TotalAmountTTC    decimal.Decimal          `json:"total_amount_ttc" binding:"required"`
	CreatedAt         *time.Time               `json:"created_at"`
	LineItems         []models.InvoiceLineItem `json:"line_items"`
	Status            models.InvoiceStatus     `json:"status" binding:"required"`
}

func (p InvoiceWebhookPayload) toRecord() *models.ExternalInvoiceRecord {
	createdAt := time.Now()
	if p.CreatedAt != nil {
		createdAt = *p.CreatedAt
	}
	return &models.ExternalInvoiceRecord{
		InvoiceNumber:     p.InvoiceNumber,
		VendorDisplayName: p.VendorDisplayName,
		TotalAmountTTC:    p.TotalAmountTTC,
		CreatedAt:         createdAt,
		LineItems:         p.LineItems,
		Status:            p.Status,
	}
}

// WebhookHandler is the POST /webhooks/invoices intake. Malformed payloads
// get a 4xx so the sender's retry loop surfaces them; valid ones are
// upserted by invoice number.
func WebhookHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload InvoiceWebhookPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}

		record := payload.toRecord()
		if err := models.UpsertExternalInvoice(c.Request.Context(), record); err != nil {
			if utils.IsValidationError(err) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			config.LogError(config.GetLogger(), "invoicing", "WebhookHandler", "upsert", payload.InvoiceNumber, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store invoice"})
			return
		}

		aggregator.InvalidateReportCache()
		c.JSON(http.StatusOK, gin.H{"invoice_number": record.InvoiceNumber, "status": record.Status})
	}
}

// ListInvoicesHandler serves the mirrored invoice set, mostly for the
// register UI's invoice tab.
func ListInvoicesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		invoices, err := models.GetAllExternalInvoices(c.Request.Context())
		if err != nil {
			config.LogError(config.GetLogger(), "invoicing", "ListInvoicesHandler", "load", "", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list invoices"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"invoices": invoices, "count": len(invoices)})
	}
}
