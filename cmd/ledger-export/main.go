package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/register_backend/config"
	"bitbucket.org/mmdatafocus/register_backend/models"
	"bitbucket.org/mmdatafocus/register_backend/workflow"
)

// ledger-export writes the full local ledger to an xlsx, same artifact the
// reset workflow produces, without touching any counters. Useful for an
// ad-hoc handover or before poking at a terminal's database.
func main() {
	label := flag.String("label", "manual", "Label embedded in the backup file name")
	flag.Parse()

	config.ConnectLocalDatabase()
	models.MigrateLocalTables()

	path, err := workflow.ExportLedgerBackup(context.Background(), *label)
	if err != nil {
		fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(path)
}
