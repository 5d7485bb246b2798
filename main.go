package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/supporttools/GoStorageGuard/pkg/adminserver"
	"github.com/supporttools/GoStorageGuard/pkg/config"
	"github.com/supporttools/GoStorageGuard/pkg/metadata"
	"github.com/supporttools/GoStorageGuard/pkg/mirror"
	"github.com/supporttools/GoStorageGuard/pkg/mounts"
	"github.com/supporttools/GoStorageGuard/pkg/retention"
	"github.com/supporttools/GoStorageGuard/pkg/runlog"
	"github.com/supporttools/GoStorageGuard/pkg/scheduler"
)

func main() {
	log.Println("Starting GoStorageGuard...")

	// Load and validate configuration
	config.LoadConfiguration()
	if err := config.ValidateConfig(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	if config.CFG.Debug {
		log.Println("Configuration loaded and validated successfully")
		config.DisplayConfiguration()
	}

	// Initialize the run history store (database-backed or file-based)
	if err := metadata.Initialize(); err != nil {
		log.Fatalf("Failed to initialize run store: %v", err)
	}

	checker := mounts.NewProcChecker()

	// Build the job engines for whichever jobs are configured
	var mirrorEngine *mirror.Engine
	if config.MirrorConfigured() {
		sink := runlog.New(config.CFG.Log.Directory, "mirror")
		defer sink.Close()

		syncer := mirror.NewRsyncSyncer(config.CFG.Mirror.RsyncPath)
		mirrorEngine = mirror.NewEngine(config.CFG.Mirror, checker, syncer, sink, metadata.DefaultStore)
	}

	var mover *retention.Mover
	if config.RetentionConfigured() {
		sink := runlog.New(config.CFG.Log.Directory, "retention")
		defer sink.Close()

		mover = retention.NewMover(config.CFG.Retention, checker, nil, sink, metadata.DefaultStore)
	}

	if mirrorEngine == nil && mover == nil {
		log.Fatal("Nothing to do: neither mirror nor retention is configured")
	}

	// Initialize scheduler
	sched, err := scheduler.NewScheduler(mirrorEngine, mover)
	if err != nil {
		log.Fatalf("Failed to initialize scheduler: %v", err)
	}

	// Setup scheduled jobs
	if err := sched.SetupJobs(); err != nil {
		log.Fatalf("Failed to setup scheduled jobs: %v", err)
	}

	// Start the scheduler
	sched.Start()

	// Start the admin server
	adminSrv := adminserver.NewServer(sched, checker)
	httpServer := adminSrv.Start()

	// Setup signal handling for graceful shutdown
	setupSignalHandling(sched, httpServer)

	// Block indefinitely
	log.Println("GoStorageGuard is running. Press Ctrl+C to exit.")
	sched.WaitForever()
}

// setupSignalHandling configures graceful shutdown on SIGINT or SIGTERM
func setupSignalHandling(sched *scheduler.Scheduler, httpServer *http.Server) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-c
		fmt.Printf("Received signal %s, shutting down...\n", sig)
		sched.Stop()

		if httpServer != nil {
			if err := httpServer.Close(); err != nil {
				log.Printf("Error shutting down HTTP server: %v", err)
			}
		}

		os.Exit(0)
	}()
}
