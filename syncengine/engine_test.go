package syncengine_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bitbucket.org/mmdatafocus/register_backend/config"
	"bitbucket.org/mmdatafocus/register_backend/models"
	"bitbucket.org/mmdatafocus/register_backend/syncengine"
)

const terminalA = "terminal-a"

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

// captureFeed records publish order without the blocking Subscribe dance.
type captureFeed struct {
	mu        sync.Mutex
	published []string
}

func (f *captureFeed) Publish(ctx context.Context, row models.SharedSaleRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, row.ID)
	return nil
}

func (f *captureFeed) Subscribe(ctx context.Context, handler func(models.SharedSaleRow)) error {
	<-ctx.Done()
	return ctx.Err()
}

func (f *captureFeed) order() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.published))
	copy(out, f.published)
	return out
}

func testEngine(shared syncengine.SharedStore, feed syncengine.SaleFeed) (*syncengine.Engine, *models.SyncStatusTracker) {
	status := models.NewSyncStatusTracker()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return syncengine.NewEngine(shared, feed, status, log, terminalA), status
}

func testSale(id string, amount string) models.SaleRecord {
	return models.SaleRecord{
		ID:            id,
		VendorId:      "v1",
		VendorName:    "Vendor v1",
		TotalAmount:   decimal.RequireFromString(amount),
		PaymentMethod: models.PaymentMethodCash,
		OriginStore:   terminalA,
		CreatedAt:     time.Now(),
	}
}

// A sale made while the shared store is down must land in the queue, leave
// the caller with no error, and survive to be drained after reconnection.
func TestPushSaleOfflineThenDrain(t *testing.T) {
	openTestStore(t)
	ctx := context.Background()

	mem := syncengine.NewMemorySharedStore()
	mem.SetFailing(true, true)
	engine, status := testEngine(mem, nil)

	if err := engine.PushSale(ctx, testSale("s1", "100")); err != nil {
		t.Fatalf("offline push must not error to the caller: %v", err)
	}

	snap := status.Snapshot()
	if snap.IsOnline {
		t.Fatal("status must flip offline after a failed push")
	}
	if !strings.HasPrefix(snap.LastError, "connectivity:") {
		t.Fatalf("push failure must surface as a connectivity error, got %q", snap.LastError)
	}
	if snap.PendingCount != 1 {
		t.Fatalf("expected pendingCount 1, got %d", snap.PendingCount)
	}
	if n, _ := models.CountOfflineQueue(ctx); n != 1 {
		t.Fatalf("expected 1 queued entry, got %d", n)
	}
	if mem.SaleCount() != 0 {
		t.Fatal("nothing should have reached the shared store")
	}

	mem.SetFailing(false, false)
	engine.Drain(ctx)

	if mem.SaleCount() != 1 {
		t.Fatalf("drain did not replay the sale, store has %d", mem.SaleCount())
	}
	if n, _ := models.CountOfflineQueue(ctx); n != 0 {
		t.Fatalf("queue not emptied, %d left", n)
	}
	snap = status.Snapshot()
	if !snap.IsOnline || snap.PendingCount != 0 {
		t.Fatalf("status not back online: %+v", snap)
	}
}

// Drain replays strictly in enqueue order and halts at the first failure
// without deleting anything past it.
func TestDrainHaltsAtFirstFailure(t *testing.T) {
	openTestStore(t)
	ctx := context.Background()

	mem := syncengine.NewMemorySharedStore()
	mem.SetFailing(true, true)
	feed := &captureFeed{}
	engine, status := testEngine(mem, feed)

	for i := 1; i <= 3; i++ {
		if err := engine.PushSale(ctx, testSale(fmt.Sprintf("s%d", i), "10")); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	if n, _ := models.CountOfflineQueue(ctx); n != 3 {
		t.Fatalf("expected 3 queued entries, got %d", n)
	}

	// Still down: nothing may be drained or deleted.
	engine.Drain(ctx)
	if n, _ := models.CountOfflineQueue(ctx); n != 3 {
		t.Fatalf("drain while offline must delete nothing, %d left", n)
	}
	if status.Snapshot().IsOnline {
		t.Fatal("a fully failed drain must not mark the terminal online")
	}

	mem.SetFailing(false, false)
	engine.Drain(ctx)

	if got := feed.order(); len(got) != 3 || got[0] != "s1" || got[1] != "s2" || got[2] != "s3" {
		t.Fatalf("drain order wrong: %v", got)
	}
	if n, _ := models.CountOfflineQueue(ctx); n != 0 {
		t.Fatalf("queue not emptied, %d left", n)
	}
}

func TestHandleRemoteSaleSkipsOwnOrigin(t *testing.T) {
	openTestStore(t)
	ctx := context.Background()

	mem := syncengine.NewMemorySharedStore()
	engine, _ := testEngine(mem, nil)

	own := models.ToSharedSaleRow(testSale("own-1", "10"))
	engine.HandleRemoteSale(ctx, own)

	if n, _ := models.CountOfflineQueue(ctx); n != 0 {
		t.Fatalf("own-origin event queued something: %d", n)
	}
	if exists, _ := models.SaleRecordExists(ctx, "own-1"); exists {
		t.Fatal("own-origin event must not be re-inserted")
	}
}

// Feed delivery and sweep pages may hand the engine the same row any number
// of times in any order; the ledger must end with exactly one copy.
func TestFeedAndSweepInterleavingConverges(t *testing.T) {
	openTestStore(t)
	ctx := context.Background()

	mem := syncengine.NewMemorySharedStore()
	engine, _ := testEngine(mem, nil)

	foreign := testSale("remote-1", "200")
	foreign.OriginStore = "terminal-b"
	row := models.ToSharedSaleRow(foreign)

	if err := mem.UpsertSale(ctx, row); err != nil {
		t.Fatalf("seed shared store: %v", err)
	}

	engine.HandleRemoteSale(ctx, row)
	engine.SweepOnce(ctx)
	engine.HandleRemoteSale(ctx, row)
	engine.SweepOnce(ctx)

	all, err := models.GetAllSaleRecords(ctx)
	if err != nil {
		t.Fatalf("GetAllSaleRecords: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected exactly one merged row, got %d", len(all))
	}
	if !all[0].IsFromOtherTerminal {
		t.Fatal("merged row must be tagged as foreign")
	}
}

func TestProbeTracksConnectivity(t *testing.T) {
	openTestStore(t)
	ctx := context.Background()

	mem := syncengine.NewMemorySharedStore()
	engine, status := testEngine(mem, nil)

	mem.SetFailing(true, true)
	engine.ProbeOnce(ctx)
	if status.Snapshot().IsOnline {
		t.Fatal("probe against a dead store must report offline")
	}

	mem.SetFailing(false, false)
	engine.ProbeOnce(ctx)
	if !status.Snapshot().IsOnline {
		t.Fatal("probe must report back online")
	}

	// The offline-to-online edge fires a background drain; let it finish
	// before the test store is torn down.
	time.Sleep(50 * time.Millisecond)
}
