// storageguard-mirror is a command-line tool to run a single gated mirror pass
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/supporttools/GoStorageGuard/pkg/config"
	"github.com/supporttools/GoStorageGuard/pkg/metadata"
	"github.com/supporttools/GoStorageGuard/pkg/mirror"
	"github.com/supporttools/GoStorageGuard/pkg/mounts"
	"github.com/supporttools/GoStorageGuard/pkg/runlog"
)

// stringSlice collects repeated flag values
type stringSlice []string

func (s *stringSlice) String() string { return strings.Join(*s, ",") }

func (s *stringSlice) Set(value string) error {
	*s = append(*s, value)
	return nil
}

var (
	dryRun   = flag.Bool("dry-run", false, "Report what would be transferred without changing the replica")
	noDelete = flag.Bool("no-delete", false, "Keep replica files that no longer exist on the primary")
	excludes stringSlice
)

func main() {
	flag.Var(&excludes, "exclude", "Pattern to exclude from the transfer (repeatable)")
	flag.Parse()

	config.LoadConfiguration()
	if err := config.ValidateConfig(); err != nil {
		log.Printf("Configuration validation failed: %v", err)
		os.Exit(2)
	}

	if !config.MirrorConfigured() {
		log.Print("Mirror job is not configured: set PRIMARY_ROOT and REPLICA_ROOT")
		os.Exit(2)
	}

	if err := metadata.Initialize(); err != nil {
		log.Printf("Failed to initialize run store: %v", err)
		os.Exit(2)
	}

	sink := runlog.New(config.CFG.Log.Directory, "mirror")
	defer sink.Close()

	checker := mounts.NewProcChecker()
	syncer := mirror.NewRsyncSyncer(config.CFG.Mirror.RsyncPath)
	engine := mirror.NewEngine(config.CFG.Mirror, checker, syncer, sink, metadata.DefaultStore)

	opts := engine.DefaultOptions()
	opts.DryRun = *dryRun || os.Getenv("DRY_RUN") == "1"
	if *noDelete {
		opts.DeleteOrphans = false
	}
	if len(excludes) > 0 {
		opts.ExcludePatterns = append(opts.ExcludePatterns, excludes...)
	}

	result := engine.Sync(context.Background(), opts)

	switch result.Status {
	case mirror.StatusSuccess, mirror.StatusSuccessWithWarnings:
		fmt.Printf("Mirror pass complete: %d files transferred, %d deleted\n",
			result.Summary.FilesTransferred, result.Summary.FilesDeleted)
		os.Exit(0)
	default:
		log.Printf("Mirror pass failed: %v", result.Err)

		var gateErr *mounts.GateError
		if errors.As(result.Err, &gateErr) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
