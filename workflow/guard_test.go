package workflow_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bitbucket.org/mmdatafocus/register_backend/config"
	"bitbucket.org/mmdatafocus/register_backend/models"
	"bitbucket.org/mmdatafocus/register_backend/utils"
	"bitbucket.org/mmdatafocus/register_backend/workflow"
)

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

var guardNow = time.Date(2026, 8, 29, 18, 0, 0, 0, time.UTC)

func testGuard(at time.Time) *workflow.Guard {
	guard := workflow.NewGuard()
	guard.Now = func() time.Time { return at }
	return guard
}

func testResetter(t *testing.T, guard *workflow.Guard) *workflow.Resetter {
	t.Helper()
	t.Setenv("BACKUP_DIR", t.TempDir())
	resetter := workflow.NewResetter(guard)
	resetter.Sleep = func(time.Duration) {}
	return resetter
}

func openTestSession(t *testing.T, ctx context.Context, start, end time.Time) *models.Session {
	t.Helper()
	session, err := models.OpenSession(ctx, &models.NewSession{
		EventName:  "marché de noël",
		EventStart: start,
		EventEnd:   end,
	})
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	return session
}

func TestGuardStepsAreForwardOnly(t *testing.T) {
	openTestStore(t)
	ctx := context.Background()
	guard := testGuard(guardNow)
	session := openTestSession(t, ctx, guardNow.Add(-time.Hour), guardNow.Add(time.Hour))

	// Notify before print is refused.
	if _, err := guard.Notify(ctx, session.ID); !utils.IsGuardViolation(err) {
		t.Fatalf("expected GuardViolation, got %v", err)
	}

	// Print forces the view step rather than refusing.
	state, err := guard.Print(ctx, session.ID)
	if err != nil {
		t.Fatalf("Print: %v", err)
	}
	if !state.Viewed || !state.Printed {
		t.Fatalf("print must imply viewed: %+v", state)
	}

	state, err = guard.Notify(ctx, session.ID)
	if err != nil {
		t.Fatalf("Notify after print: %v", err)
	}
	if !state.EmailSent {
		t.Fatal("notify step not recorded")
	}

	// Replaying an earlier step never clears a later one.
	state, err = guard.View(ctx, session.ID)
	if err != nil {
		t.Fatalf("View replay: %v", err)
	}
	if !state.Printed || !state.EmailSent {
		t.Fatalf("replayed step cleared progress: %+v", state)
	}
}

func TestGuardRearmsAtMidnight(t *testing.T) {
	openTestStore(t)
	ctx := context.Background()
	session := openTestSession(t, ctx, guardNow.Add(-time.Hour), guardNow.AddDate(0, 0, 3))

	today := testGuard(guardNow)
	if _, err := today.Print(ctx, session.ID); err != nil {
		t.Fatalf("Print: %v", err)
	}

	// Next calendar day, fresh key, everything unset again.
	tomorrow := testGuard(guardNow.AddDate(0, 0, 1))
	if _, err := tomorrow.Notify(ctx, session.ID); !utils.IsGuardViolation(err) {
		t.Fatalf("guard did not re-arm on date change, got %v", err)
	}
}

func TestDailyResetRequiresFullChain(t *testing.T) {
	openTestStore(t)
	ctx := context.Background()
	guard := testGuard(guardNow)
	resetter := testResetter(t, guard)
	session := openTestSession(t, ctx, guardNow.Add(-time.Hour), guardNow.Add(time.Hour))

	err := resetter.ExecuteDailyReset(ctx, session.ID, "")
	if !utils.IsGuardViolation(err) {
		t.Fatalf("reset without any step must be refused, got %v", err)
	}

	if _, err := guard.Print(ctx, session.ID); err != nil {
		t.Fatalf("Print: %v", err)
	}
	err = resetter.ExecuteDailyReset(ctx, session.ID, "")
	if !utils.IsGuardViolation(err) {
		t.Fatalf("reset without notify must be refused, got %v", err)
	}
}

func TestDailyResetZeroesDailyCountersOnly(t *testing.T) {
	openTestStore(t)
	ctx := context.Background()
	guard := testGuard(guardNow)
	resetter := testResetter(t, guard)
	session := openTestSession(t, ctx, guardNow.Add(-time.Hour), guardNow.Add(time.Hour))

	if _, err := models.CreateVendorStat(ctx, &models.NewVendorStat{ID: "v1", Name: "Vendor v1"}); err != nil {
		t.Fatalf("CreateVendorStat: %v", err)
	}
	if _, err := models.ApplySaleDelta(ctx, "v1", decimal.RequireFromString("120")); err != nil {
		t.Fatalf("ApplySaleDelta: %v", err)
	}

	if _, err := guard.Print(ctx, session.ID); err != nil {
		t.Fatalf("Print: %v", err)
	}
	if _, err := guard.Notify(ctx, session.ID); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if err := resetter.ExecuteDailyReset(ctx, session.ID, ""); err != nil {
		t.Fatalf("ExecuteDailyReset: %v", err)
	}

	stat, err := models.GetVendorStat(ctx, "v1")
	if err != nil {
		t.Fatalf("GetVendorStat: %v", err)
	}
	if !stat.DailySales.IsZero() {
		t.Fatalf("daily counter not zeroed: %s", stat.DailySales)
	}
	if !stat.TotalSales.Equal(decimal.RequireFromString("120")) {
		t.Fatalf("total counter must survive the daily reset: %s", stat.TotalSales)
	}

	cutoff, err := models.GetLastRAZCutoff(ctx)
	if err != nil {
		t.Fatalf("GetLastRAZCutoff: %v", err)
	}
	if cutoff.Unix() != guardNow.Unix() {
		t.Fatalf("cutoff not stamped: %v", cutoff)
	}
}

func TestDailyResetVerifiesPin(t *testing.T) {
	openTestStore(t)
	ctx := context.Background()
	guard := testGuard(guardNow)
	resetter := testResetter(t, guard)
	session := openTestSession(t, ctx, guardNow.Add(-time.Hour), guardNow.Add(time.Hour))

	hash, err := bcrypt.GenerateFromPassword([]byte("4321"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	t.Setenv("RESET_PIN_HASH", string(hash))

	if _, err := guard.Print(ctx, session.ID); err != nil {
		t.Fatalf("Print: %v", err)
	}
	if _, err := guard.Notify(ctx, session.ID); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if err := resetter.ExecuteDailyReset(ctx, session.ID, "0000"); !utils.IsValidationError(err) {
		t.Fatalf("wrong pin must be refused, got %v", err)
	}
	if err := resetter.ExecuteDailyReset(ctx, session.ID, "4321"); err != nil {
		t.Fatalf("correct pin refused: %v", err)
	}
}

func TestEndOfSessionResetDateGate(t *testing.T) {
	openTestStore(t)
	ctx := context.Background()
	guard := testGuard(guardNow)
	resetter := testResetter(t, guard)
	eventEnd := guardNow.Add(48 * time.Hour)
	session := openTestSession(t, ctx, guardNow.Add(-time.Hour), eventEnd)

	if _, err := guard.Print(ctx, session.ID); err != nil {
		t.Fatalf("Print: %v", err)
	}
	if _, err := guard.Notify(ctx, session.ID); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	err := resetter.ExecuteEndOfSessionReset(ctx, session.ID, "")
	if !utils.IsDateGateViolation(err) {
		t.Fatalf("reset before eventEnd must hit the date gate, got %v", err)
	}

	// Session must still be open and the ledger untouched.
	if _, err := models.GetActiveSession(ctx); err != nil {
		t.Fatalf("session must survive a refused reset: %v", err)
	}
}

func TestEndOfSessionResetPurgesAndCloses(t *testing.T) {
	openTestStore(t)
	ctx := context.Background()

	start := guardNow.Add(-time.Hour)
	end := guardNow.Add(time.Hour)
	session := openTestSession(t, ctx, start, end)

	input := &models.NewSaleRecord{
		VendorId:      "v1",
		VendorName:    "Vendor v1",
		Items:         []models.SaleItem{{Name: "item", UnitPrice: decimal.RequireFromString("80"), Quantity: 1}},
		TotalAmount:   decimal.RequireFromString("80"),
		PaymentMethod: models.PaymentMethodCash,
	}
	if _, err := models.CreateSaleRecord(ctx, input); err != nil {
		t.Fatalf("CreateSaleRecord: %v", err)
	}
	if _, err := models.CreateVendorStat(ctx, &models.NewVendorStat{ID: "v1", Name: "Vendor v1"}); err != nil {
		t.Fatalf("CreateVendorStat: %v", err)
	}
	if _, err := models.ApplySaleDelta(ctx, "v1", decimal.RequireFromString("80")); err != nil {
		t.Fatalf("ApplySaleDelta: %v", err)
	}

	// Run the reset after the event has ended.
	guard := testGuard(end.Add(time.Minute))
	resetter := testResetter(t, guard)
	if _, err := guard.Print(ctx, session.ID); err != nil {
		t.Fatalf("Print: %v", err)
	}
	if _, err := guard.Notify(ctx, session.ID); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if err := resetter.ExecuteEndOfSessionReset(ctx, session.ID, ""); err != nil {
		t.Fatalf("ExecuteEndOfSessionReset: %v", err)
	}

	sales, err := models.GetAllSaleRecords(ctx)
	if err != nil {
		t.Fatalf("GetAllSaleRecords: %v", err)
	}
	if len(sales) != 0 {
		t.Fatalf("ledger not purged, %d rows left", len(sales))
	}

	stat, err := models.GetVendorStat(ctx, "v1")
	if err != nil {
		t.Fatalf("GetVendorStat: %v", err)
	}
	if !stat.DailySales.IsZero() || !stat.TotalSales.IsZero() {
		t.Fatalf("counters not zeroed: %+v", stat)
	}

	if _, err := models.GetActiveSession(ctx); err != utils.ErrorRecordNotFound {
		t.Fatalf("session must be closed, got %v", err)
	}
	closed, err := models.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if closed.Status != models.SessionStatusClosed {
		t.Fatalf("session status not closed: %s", closed.Status)
	}
	if !closed.ClosingTotals.Equal(decimal.RequireFromString("80")) || closed.ClosingCount != 1 {
		t.Fatalf("closing totals wrong: %s / %d", closed.ClosingTotals, closed.ClosingCount)
	}
}

func TestAckGateModes(t *testing.T) {
	openTestStore(t)
	ctx := context.Background()
	guard := testGuard(guardNow)
	session := openTestSession(t, ctx, guardNow.Add(-time.Hour), guardNow.Add(time.Hour))

	// Default mode prompts every time; Ack never writes the key.
	if _, err := guard.Ack(ctx, session.ID); err != nil {
		t.Fatalf("Ack: %v", err)
	}
	prompt, err := guard.NeedsAckPrompt(ctx, session.ID)
	if err != nil {
		t.Fatalf("NeedsAckPrompt: %v", err)
	}
	if !prompt {
		t.Fatal("always-prompt mode must keep prompting")
	}

	if err := guard.SetMode(ctx, session.ID, models.GuardModeOncePerDay); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if _, err := guard.Ack(ctx, session.ID); err != nil {
		t.Fatalf("Ack: %v", err)
	}
	prompt, err = guard.NeedsAckPrompt(ctx, session.ID)
	if err != nil {
		t.Fatalf("NeedsAckPrompt: %v", err)
	}
	if prompt {
		t.Fatal("once-per-day mode must stop prompting after the ack")
	}

	// Next day, fresh key, prompt again.
	tomorrow := testGuard(guardNow.AddDate(0, 0, 1))
	prompt, err = tomorrow.NeedsAckPrompt(ctx, session.ID)
	if err != nil {
		t.Fatalf("NeedsAckPrompt: %v", err)
	}
	if !prompt {
		t.Fatal("ack must not carry over to the next day")
	}
}
