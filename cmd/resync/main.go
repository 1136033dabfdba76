package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"bitbucket.org/mmdatafocus/register_backend/config"
	"bitbucket.org/mmdatafocus/register_backend/models"
	"bitbucket.org/mmdatafocus/register_backend/syncengine"
)

// resync forces one reconciliation pass against the shared store: drain
// whatever is parked in the offline queue, then pull a recency page and
// merge it. Run it on a terminal that has been offline long enough that
// waiting for the next sweep tick is annoying.
func main() {
	pageSize := flag.Int("page-size", 500, "How many recent shared rows to merge")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall deadline")
	flag.Parse()

	if !config.RemoteConfigured() {
		fmt.Fprintln(os.Stderr, "DB_HOST is not set; nothing to resync against")
		os.Exit(1)
	}

	config.ConnectLocalDatabase()
	models.MigrateLocalTables()
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	status := models.NewSyncStatusTracker()
	engine := syncengine.NewEngine(
		syncengine.NewGormSharedStore(config.GetDB()),
		nil,
		status,
		config.GetLogger(),
		models.TerminalID(),
	)
	engine.SweepPageSize = *pageSize

	engine.Drain(ctx)
	engine.SweepOnce(ctx)

	snapshot := status.Snapshot()
	fmt.Printf("online=%v pending=%d\n", snapshot.IsOnline, snapshot.PendingCount)
}
