package syncengine

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"bitbucket.org/mmdatafocus/register_backend/aggregator"
	"bitbucket.org/mmdatafocus/register_backend/config"
	"bitbucket.org/mmdatafocus/register_backend/models"
	"bitbucket.org/mmdatafocus/register_backend/utils"
)

// CreateSaleHandler is the checkout intake: validate, write the local
// ledger, adjust the vendor counters, then push. The push can fail without
// failing the request; the sale is safe locally and queued for retry.
func CreateSaleHandler(engine *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewSaleRecord
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		ctx := utils.SetTerminalIdInContext(c.Request.Context(), engine.TerminalID)
		record, err := models.CreateSaleRecord(ctx, &input)
		if err != nil {
			if utils.IsValidationError(err) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		stat, statErr := models.ApplySaleDelta(ctx, record.VendorId, record.TotalAmount)
		if statErr != nil && !errors.Is(statErr, utils.ErrorRecordNotFound) {
			config.LogError(config.GetLogger(), "syncengine", "CreateSaleHandler", "vendor delta", record.VendorId, statErr)
		}

		_ = engine.PushSale(ctx, *record)
		if stat != nil {
			_ = engine.PushVendorStat(ctx, *stat)
		}
		aggregator.InvalidateReportCache()

		c.JSON(http.StatusCreated, CreateSaleResponse{
			ID:          record.ID,
			TotalAmount: record.TotalAmount,
			OriginStore: record.OriginStore,
		})
	}
}

// CancelSaleHandler flips the one-way cancel flag and re-propagates the
// record through the same outbound channel.
func CancelSaleHandler(engine *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		ctx := utils.SetTerminalIdInContext(c.Request.Context(), engine.TerminalID)

		record, flipped, err := models.CancelSaleRecord(ctx, id)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "sale not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		// A retried cancel already took effect; the delta and re-push belong
		// to the call that flipped the flag.
		if flipped {
			stat, statErr := models.ApplySaleDelta(ctx, record.VendorId, record.TotalAmount.Neg())
			if statErr != nil && !errors.Is(statErr, utils.ErrorRecordNotFound) {
				config.LogError(config.GetLogger(), "syncengine", "CancelSaleHandler", "vendor delta", record.VendorId, statErr)
			}

			_ = engine.PushSale(ctx, *record)
			if stat != nil {
				_ = engine.PushVendorStat(ctx, *stat)
			}
			aggregator.InvalidateReportCache()
		}

		c.JSON(http.StatusOK, CancelSaleResponse{ID: record.ID, Canceled: record.Canceled})
	}
}

// SyncStatusHandler exposes the read-only status snapshot for the UI's
// persistent indicator.
func SyncStatusHandler(engine *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		snapshot := engine.Status.Snapshot()
		if pending, err := models.CountOfflineQueue(c.Request.Context()); err == nil {
			snapshot.PendingCount = pending
		}
		c.JSON(http.StatusOK, gin.H{
			"terminal_id": engine.TerminalID,
			"status":      snapshot,
		})
	}
}

// TriggerSweepHandler forces a reconciliation pass. Used by the resync ops
// tool; harmless to call at any time.
func TriggerSweepHandler(engine *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		engine.SweepOnce(c.Request.Context())
		// The drain must outlive the request.
		go engine.Drain(context.Background())
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// PubSubPushHandler is the push-delivery variant of the sale feed, for
// deployments where the terminal cannot hold a pull subscription open.
func PubSubPushHandler(engine *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var envelope PubSubPushEnvelope
		if err := c.ShouldBindJSON(&envelope); err != nil {
			// Malformed push delivery: ack/drop to avoid infinite retries.
			c.Status(http.StatusNoContent)
			return
		}

		row, err := DecodeSaleEvent(envelope.Message.Data)
		if err != nil || row.ID == "" {
			c.Status(http.StatusNoContent)
			return
		}

		engine.HandleRemoteSale(c.Request.Context(), row)
		c.Status(http.StatusNoContent)
	}
}

// ListSalesHandler returns the local ledger, for the stock tables and the
// invoice display.
func ListSalesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		records, err := models.GetAllSaleRecords(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": records})
	}
}

// VendorsHandler lists the roster with its running counters.
func VendorsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := models.GetAllVendorStats(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": stats})
	}
}

// CreateVendorHandler registers a vendor on this terminal's roster.
func CreateVendorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewVendorStat
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		stat, err := models.CreateVendorStat(c.Request.Context(), &input)
		if err != nil {
			if utils.IsValidationError(err) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, stat)
	}
}
