package config

import (
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	localDB *gorm.DB
)

// GetLocalDB returns the terminal-local durable store. Unlike the shared
// store this must be available before the process can do anything useful:
// the local ledger, offline queue and guard state all live here.
func GetLocalDB() *gorm.DB {
	return localDB
}

// ConnectLocalDatabase opens (creating if needed) the terminal's sqlite
// file. The local store is the authoritative post-restart snapshot of the
// terminal's own sales, so failure here is fatal.
func ConnectLocalDatabase() {
	path := strings.TrimSpace(os.Getenv("TERMINAL_DB_PATH"))
	if path == "" {
		path = "terminal.db"
	}

	var err error
	localDB, err = gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		Logger: logger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			logger.Config{
				Colorful:      false,
				LogLevel:      logger.Error,
				SlowThreshold: time.Second,
			},
		),
	})
	if err != nil {
		log.Fatalf("failed to open terminal store %q: %v", path, err)
	}
	log.Printf("opened terminal store (path=%s)", path)
}

// SetLocalDB swaps the local store handle. Tests use this with an in-memory
// sqlite database.
func SetLocalDB(handle *gorm.DB) {
	localDB = handle
}
