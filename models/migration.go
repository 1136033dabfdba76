package models

import (
	"log"

	"bitbucket.org/mmdatafocus/register_backend/config"
)

// MigrateLocalTables creates the terminal-local schema: the ledger, the
// offline queue and the persisted guard/session state.
func MigrateLocalTables() {
	db := config.GetLocalDB()

	err := db.AutoMigrate(
		&SaleRecord{}, &VendorStat{}, &ExternalInvoiceRecord{},
		&Session{}, &RAZGuardState{},
		&OfflineQueueEntry{}, &TerminalSetting{},
	)
	if err != nil {
		log.Fatal(err)
	}
}

// MigrateSharedTables creates the shared-store schema. Every terminal runs
// this at startup; AutoMigrate is a no-op once the tables exist.
func MigrateSharedTables() {
	db := config.GetDB()
	if db == nil {
		return
	}

	err := db.AutoMigrate(
		&SharedSaleRow{}, &SharedVendorStatRow{}, &Session{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
