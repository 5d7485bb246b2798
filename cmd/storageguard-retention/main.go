// storageguard-retention is a command-line tool to run a single tiered retention pass
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/supporttools/GoStorageGuard/pkg/config"
	"github.com/supporttools/GoStorageGuard/pkg/metadata"
	"github.com/supporttools/GoStorageGuard/pkg/mounts"
	"github.com/supporttools/GoStorageGuard/pkg/retention"
	"github.com/supporttools/GoStorageGuard/pkg/runlog"
)

var (
	dryRun = flag.Bool("dry-run", false, "Report what would be moved and purged without changing anything")
)

func main() {
	flag.Parse()

	config.LoadConfiguration()
	if err := config.ValidateConfig(); err != nil {
		log.Printf("Configuration validation failed: %v", err)
		os.Exit(2)
	}

	if !config.RetentionConfigured() {
		log.Print("Retention job is not configured: set HOT_ROOT and WARM_ROOT")
		os.Exit(2)
	}

	if err := metadata.Initialize(); err != nil {
		log.Printf("Failed to initialize run store: %v", err)
		os.Exit(2)
	}

	sink := runlog.New(config.CFG.Log.Directory, "retention")
	defer sink.Close()

	checker := mounts.NewProcChecker()
	mover := retention.NewMover(config.CFG.Retention, checker, nil, sink, metadata.DefaultStore)

	summary, err := mover.RunPass(context.Background(), *dryRun || os.Getenv("DRY_RUN") == "1")
	if err != nil {
		log.Printf("Retention pass aborted: %v", err)
		os.Exit(2)
	}

	verbMoved, verbPurged := "moved", "purged"
	if summary.DryRun {
		verbMoved, verbPurged = "would move", "would purge"
	}
	fmt.Printf("Retention pass complete: %s %d buckets, %s %d buckets, %d errors\n",
		verbMoved, summary.BucketsMoved, verbPurged, summary.BucketsPurged, summary.Errors)

	if summary.Errors > 0 {
		os.Exit(1)
	}
	os.Exit(0)
}
