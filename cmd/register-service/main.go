package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/register_backend/aggregator"
	"bitbucket.org/mmdatafocus/register_backend/config"
	"bitbucket.org/mmdatafocus/register_backend/invoicing"
	"bitbucket.org/mmdatafocus/register_backend/models"
	"bitbucket.org/mmdatafocus/register_backend/syncengine"
	"bitbucket.org/mmdatafocus/register_backend/utils"
	"bitbucket.org/mmdatafocus/register_backend/workflow"
)

const defaultPort = "8080"

func main() {
	port := os.Getenv("REGISTER_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// The local store is this terminal's source of truth; nothing works
	// without it, so it connects before the server listens. The remote
	// store connects after, Cloud Run style.
	config.ConnectLocalDatabase()
	models.MigrateLocalTables()
	terminalID := models.TerminalID()

	status := models.NewSyncStatusTracker()

	var shared syncengine.SharedStore
	var feed syncengine.SaleFeed
	remote := config.RemoteConfigured()
	if remote {
		shared = syncengine.NewGormSharedStore(nil)
		feed = syncengine.NewPubSubFeed(terminalID)
	} else {
		// Dev mode: a single-process in-memory shared store.
		mem := syncengine.NewMemorySharedStore()
		shared = mem
		feed = syncengine.NewMemoryFeed()
		logger.WithFields(logrus.Fields{"module": "main"}).
			Warn("DB_HOST not set; running with in-memory shared store")
	}

	engine := syncengine.NewEngine(shared, feed, status, logger, terminalID)
	engine.ProbeInterval = config.DurationFromEnvSeconds("PROBE_INTERVAL_SECONDS", 30*time.Second)
	engine.SweepInterval = config.DurationFromEnvSeconds("SWEEP_INTERVAL_SECONDS", 5*time.Minute)
	engine.SweepPageSize = config.IntFromEnv("SWEEP_PAGE_SIZE", 200)

	guard := workflow.NewGuard()
	resetter := workflow.NewResetter(guard)
	pushSession := func(c *gin.Context, session models.Session) {
		engine.PushSession(c.Request.Context(), session)
	}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		ctx := utils.SetCorrelationIdInContext(c.Request.Context(), cid)
		ctx = utils.SetTerminalIdInContext(ctx, terminalID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition")
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))
	r.Use(requestLogger(logger))
	r.Use(gin.Recovery())

	// Sales + sync.
	r.POST("/api/sales", syncengine.CreateSaleHandler(engine))
	r.POST("/api/sales/:id/cancel", syncengine.CancelSaleHandler(engine))
	r.GET("/api/sales", syncengine.ListSalesHandler())
	r.GET("/api/sync/status", syncengine.SyncStatusHandler(engine))
	r.POST("/api/sync/sweep", syncengine.TriggerSweepHandler(engine))

	// Vendors.
	r.GET("/api/vendors", syncengine.VendorsHandler())
	r.POST("/api/vendors", syncengine.CreateVendorHandler())

	// Reports.
	r.GET("/api/reports/aggregate", aggregator.AggregateReportHandler())
	r.GET("/api/reports/aggregate/export", aggregator.ExportReportHandler())
	r.GET("/api/reports/settlements", aggregator.SettlementsHandler())

	// RAZ workflow.
	r.POST("/api/raz/view", workflow.ViewHandler(guard))
	r.POST("/api/raz/print", workflow.PrintHandler(guard))
	r.POST("/api/raz/notify", workflow.NotifyHandler(guard))
	r.POST("/api/raz/ack", workflow.AckHandler(guard))
	r.GET("/api/raz/state", workflow.GuardStateHandler(guard))
	r.POST("/api/raz/mode", workflow.GuardModeHandler(guard))
	r.POST("/api/raz/daily", workflow.DailyResetHandler(resetter))
	r.POST("/api/raz/end-of-session", workflow.EndOfSessionResetHandler(resetter))

	// Session window.
	r.GET("/api/session", workflow.GetSessionHandler())
	r.POST("/api/session", workflow.OpenSessionHandler(pushSession))
	r.POST("/api/session/close", workflow.CloseSessionHandler(pushSession))

	// External invoice intake + Pub/Sub push delivery.
	r.POST("/webhooks/invoices", invoicing.WebhookHandler())
	r.GET("/api/invoices", invoicing.ListInvoicesHandler())
	r.POST("/pubsub/sales", syncengine.PubSubPushHandler(engine))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	if remote {
		config.ConnectDatabaseWithRetry()
		config.ConnectRedisWithRetry()
		models.MigrateSharedTables()

		db := config.GetDB()
		sqlDB, _ := db.DB()
		defer func() {
			if sqlDB != nil {
				_ = sqlDB.Close()
			}
		}()
	}

	go engine.RunProbe(sigCtx)
	go engine.RunSweep(sigCtx)
	go engine.RunSubscriber(sigCtx)
	go engine.Drain(sigCtx)

	select {
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			logger.WithFields(logrus.Fields{"field": "server"}).Error(err)
		}
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		fields := logrus.Fields{
			"status":         c.Writer.Status(),
			"method":         c.Request.Method,
			"path":           c.Request.URL.Path,
			"latency":        latency.String(),
			"correlation_id": cid,
		}
		if sid, ok := utils.GetSessionIdFromContext(c.Request.Context()); ok {
			fields["session_id"] = sid
		}
		logger.WithFields(fields).Info("request")
	}
}
