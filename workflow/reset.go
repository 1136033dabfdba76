package workflow

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"bitbucket.org/mmdatafocus/register_backend/aggregator"
	"bitbucket.org/mmdatafocus/register_backend/config"
	"bitbucket.org/mmdatafocus/register_backend/models"
	"bitbucket.org/mmdatafocus/register_backend/utils"
)

// Resetter runs the two RAZ operations, both behind the same guard. Sleep
// is swappable so tests do not wait out the settle delay.
type Resetter struct {
	Guard  *Guard
	Logger *logrus.Logger
	Sleep  func(time.Duration)
}

func NewResetter(guard *Guard) *Resetter {
	return &Resetter{
		Guard:  guard,
		Logger: config.GetLogger(),
		Sleep:  time.Sleep,
	}
}

func settleDelay() time.Duration {
	return config.DurationFromEnvSeconds("RESET_SETTLE_SECONDS", 2*time.Second)
}

// verifyPin checks the operator pin against the bcrypt hash in
// RESET_PIN_HASH. An unset hash disables the check, which only makes sense
// on a dev workstation.
func verifyPin(pin string) error {
	hash := config.StringFromEnv("RESET_PIN_HASH", "")
	if hash == "" {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)); err != nil {
		return &utils.ValidationError{Field: "pin", Reason: "does not match"}
	}
	return nil
}

// ExecuteDailyReset zeroes the daily counters after the full guard chain,
// the pin check and the ledger backup. The backup must be on disk before
// anything is touched; the settle delay gives slow media time to flush.
func (r *Resetter) ExecuteDailyReset(ctx context.Context, sessionId string, pin string) error {
	state, err := r.Guard.requireArmed(ctx, sessionId)
	if err != nil {
		return err
	}
	if err := verifyPin(pin); err != nil {
		return err
	}

	path, err := r.ExportBackup(ctx, "daily")
	if err != nil {
		return err
	}

	now := r.Guard.Now()
	if err := models.ResetDailySales(ctx); err != nil {
		return err
	}
	if err := models.SetLastRAZCutoff(ctx, now); err != nil {
		return err
	}
	if err := r.Guard.markExecuted(ctx, state); err != nil {
		return err
	}

	aggregator.InvalidateReportCache()
	r.Logger.WithFields(logrus.Fields{
		"module":     "workflow",
		"session_id": sessionId,
		"backup":     path,
	}).Info("daily reset executed")
	return nil
}

// ExecuteEndOfSessionReset is the fair-teardown variant: everything the
// daily reset requires, plus the session end-date gate. It purges the
// ledger, the invoice mirror and both counters, then closes the session.
func (r *Resetter) ExecuteEndOfSessionReset(ctx context.Context, sessionId string, pin string) error {
	state, err := r.Guard.requireArmed(ctx, sessionId)
	if err != nil {
		return err
	}
	if err := verifyPin(pin); err != nil {
		return err
	}

	session, err := models.GetSession(ctx, sessionId)
	if err != nil {
		return err
	}
	now := r.Guard.Now()
	if now.Before(session.EventEnd) {
		return &utils.DateGateViolation{EligibleAt: session.EventEnd}
	}

	totals, err := sessionClosingTotals(ctx, session)
	if err != nil {
		return err
	}

	path, err := r.ExportBackup(ctx, "end-of-session")
	if err != nil {
		return err
	}

	if err := models.PurgeSaleRecords(ctx); err != nil {
		return err
	}
	if err := models.PurgeExternalInvoices(ctx); err != nil {
		return err
	}
	if err := models.ResetAllSales(ctx); err != nil {
		return err
	}
	if err := models.SetLastRAZCutoff(ctx, now); err != nil {
		return err
	}
	if _, err := models.CloseSession(ctx, totals); err != nil {
		return err
	}
	if err := r.Guard.markExecuted(ctx, state); err != nil {
		return err
	}

	aggregator.InvalidateReportCache()
	r.Logger.WithFields(logrus.Fields{
		"module":     "workflow",
		"session_id": sessionId,
		"backup":     path,
	}).Info("end-of-session reset executed")
	return nil
}

// ExportBackup writes the pre-reset backup and waits for it to settle.
func (r *Resetter) ExportBackup(ctx context.Context, label string) (string, error) {
	path, err := ExportLedgerBackup(ctx, label)
	if err != nil {
		return "", err
	}
	r.Sleep(settleDelay())
	return path, nil
}

func sessionClosingTotals(ctx context.Context, session *models.Session) (models.SessionClosingTotals, error) {
	sales, err := models.GetAllSaleRecords(ctx)
	if err != nil {
		return models.SessionClosingTotals{}, err
	}

	totals := models.SessionClosingTotals{TotalAmount: decimal.Zero}
	for _, sale := range sales {
		if sale.Canceled {
			continue
		}
		if sale.CreatedAt.Before(session.EventStart) || sale.CreatedAt.After(session.EventEnd) {
			continue
		}
		totals.TotalAmount = totals.TotalAmount.Add(sale.TotalAmount)
		totals.SaleCount++
	}
	return totals, nil
}
