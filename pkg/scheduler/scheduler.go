// Package scheduler manages scheduled lifecycle operations.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/supporttools/GoStorageGuard/pkg/config"
	"github.com/supporttools/GoStorageGuard/pkg/mirror"
	"github.com/supporttools/GoStorageGuard/pkg/retention"
)

// Scheduler handles cron scheduling for the mirror and retention jobs
type Scheduler struct {
	cronScheduler *cron.Cron
	mirrorEngine  *mirror.Engine
	mover         *retention.Mover
	cfg           *config.AppConfig
	jobIDs        map[string]cron.EntryID // Track job IDs for dynamic updates
}

// NewScheduler creates a new scheduler. Either engine may be nil when the
// corresponding job is not configured.
func NewScheduler(mirrorEngine *mirror.Engine, mover *retention.Mover) (*Scheduler, error) {
	return &Scheduler{
		cronScheduler: cron.New(),
		mirrorEngine:  mirrorEngine,
		mover:         mover,
		cfg:           &config.CFG,
		jobIDs:        make(map[string]cron.EntryID),
	}, nil
}

// SetupJobs configures all scheduled jobs
func (s *Scheduler) SetupJobs() error {
	if s.mirrorEngine != nil {
		jobID, err := s.cronScheduler.AddFunc(s.cfg.Mirror.Schedule, func() {
			log.Println("Starting scheduled mirror run...")
			result := s.mirrorEngine.Sync(context.Background(), s.mirrorEngine.DefaultOptions())
			if result.Err != nil {
				log.Printf("Error performing mirror run: %v", result.Err)
			}
		})
		if err != nil {
			return fmt.Errorf("failed to schedule mirror job with cron expression '%s': %w",
				s.cfg.Mirror.Schedule, err)
		}

		s.jobIDs["mirror"] = jobID
		log.Printf("Scheduled mirror job with cron expression: %s", s.cfg.Mirror.Schedule)
	}

	if s.mover != nil {
		jobID, err := s.cronScheduler.AddFunc(s.cfg.Retention.Schedule, func() {
			log.Println("Starting scheduled retention pass...")
			if _, err := s.mover.RunPass(context.Background(), false); err != nil {
				log.Printf("Error performing retention pass: %v", err)
			}
		})
		if err != nil {
			return fmt.Errorf("failed to schedule retention job with cron expression '%s': %w",
				s.cfg.Retention.Schedule, err)
		}

		s.jobIDs["retention"] = jobID
		log.Printf("Scheduled retention job with cron expression: %s", s.cfg.Retention.Schedule)
	}

	return nil
}

// Start begins the scheduled jobs
func (s *Scheduler) Start() {
	s.cronScheduler.Start()
	log.Println("Lifecycle scheduler started successfully")
}

// Stop halts all scheduled jobs
func (s *Scheduler) Stop() {
	ctx := s.cronScheduler.Stop()
	<-ctx.Done()
	log.Println("Lifecycle scheduler stopped")
}

// WaitForever blocks indefinitely to keep the application running
func (s *Scheduler) WaitForever() {
	// Create a channel that never receives any values to block forever
	blockForever := make(chan struct{})
	<-blockForever
}

// RunMirrorOnce runs a single mirror pass outside the schedule
func (s *Scheduler) RunMirrorOnce(dryRun bool) (mirror.Result, error) {
	if s.mirrorEngine == nil {
		return mirror.Result{}, fmt.Errorf("mirror job is not configured")
	}

	log.Printf("Running one-time mirror pass (dryRun=%t)", dryRun)
	opts := s.mirrorEngine.DefaultOptions()
	opts.DryRun = dryRun
	return s.mirrorEngine.Sync(context.Background(), opts), nil
}

// RunRetentionOnce runs a single retention pass outside the schedule
func (s *Scheduler) RunRetentionOnce(dryRun bool) (retention.Summary, error) {
	if s.mover == nil {
		return retention.Summary{}, fmt.Errorf("retention job is not configured")
	}

	log.Printf("Running one-time retention pass (dryRun=%t)", dryRun)
	return s.mover.RunPass(context.Background(), dryRun)
}

// NextRunTimes returns the next scheduled run time per job
func (s *Scheduler) NextRunTimes() map[string]time.Time {
	next := make(map[string]time.Time)

	for name, jobID := range s.jobIDs {
		entry := s.cronScheduler.Entry(jobID)
		if entry.ID != 0 {
			next[name] = entry.Next
		}
	}

	return next
}
