// Package metadata provides support for MySQL-backed run-history storage
package metadata

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/supporttools/GoStorageGuard/pkg/config"
	"github.com/supporttools/GoStorageGuard/pkg/metadata/types"
)

// DB is the global database instance
var DB *gorm.DB

// LifecycleRun represents a lifecycle run record in MySQL
type LifecycleRun struct {
	ID               string    `gorm:"primaryKey;type:varchar(255)"`
	Component        string    `gorm:"type:varchar(50);not null;index"`
	StartedAt        time.Time `gorm:"not null;index"`
	CompletedAt      *time.Time
	Status           string `gorm:"type:varchar(50);not null;index"`
	DryRun           bool   `gorm:"not null;default:false"`
	FilesTransferred int64
	BytesTransferred int64
	FilesDeleted     int64
	BucketsMoved     int64
	BytesMoved       int64
	BucketsPurged    int64
	BytesPurged      int64
	ErrorCount       int64
	Message          string `gorm:"type:text"`
	LogFilePath      string `gorm:"type:varchar(1024)"`
}

// TableName specifies the table name for the LifecycleRun model
func (LifecycleRun) TableName() string {
	return "lifecycle_runs"
}

// DBStore implements run-history storage using MySQL
type DBStore struct {
	db    *gorm.DB
	mutex sync.RWMutex
}

// InitializeRunDatabase initializes the run-history database
func InitializeRunDatabase() error {
	// If database isn't enabled, use file-based storage
	if !config.CFG.RunDB.Enabled {
		log.Println("Run-history database is not enabled, using file-based storage")
		return Initialize()
	}

	db, err := connect()
	if err != nil {
		log.Printf("Failed to connect to run-history database: %v", err)
		log.Println("Falling back to file-based run history")
		config.CFG.RunDB.Enabled = false
		return Initialize()
	}
	DB = db

	// Run auto-migrations if enabled
	if config.CFG.RunDB.AutoMigrate {
		log.Println("Running database migrations for run-history tables")
		if err := runMigrations(db); err != nil {
			log.Printf("Failed to run migrations: %v", err)
			log.Println("Falling back to file-based run history")
			config.CFG.RunDB.Enabled = false
			return Initialize()
		}
	}

	DefaultStore = &DBStore{db: db}
	log.Println("MySQL-backed run-history store initialized")

	return nil
}

// connect establishes a connection to the run-history database
func connect() (*gorm.DB, error) {
	cfg := config.CFG.RunDB

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	logLevel := logger.Silent
	if config.CFG.Debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)

	if lifetime, err := time.ParseDuration(cfg.ConnMaxLifetime); err == nil {
		sqlDB.SetConnMaxLifetime(lifetime)
	}

	return db, nil
}

// runMigrations creates or updates the run-history tables
func runMigrations(db *gorm.DB) error {
	return db.AutoMigrate(&LifecycleRun{})
}

// CreateRun records the start of a lifecycle run
func (s *DBStore) CreateRun(component string, dryRun bool) *types.RunMeta {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	meta := &types.RunMeta{
		ID:        uuid.New().String(),
		Component: component,
		StartedAt: time.Now(),
		Status:    types.StatusRunning,
		DryRun:    dryRun,
	}

	record := runToRecord(*meta)
	if err := s.db.Create(&record).Error; err != nil {
		log.Printf("Warning: failed to persist run record %s: %v", meta.ID, err)
	}

	return meta
}

// CompleteRun records the outcome of a run
func (s *DBStore) CompleteRun(id string, status types.RunStatus, counters types.RunCounters, message string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := time.Now()
	updates := map[string]interface{}{
		"status":            string(status),
		"completed_at":      &now,
		"files_transferred": counters.FilesTransferred,
		"bytes_transferred": counters.BytesTransferred,
		"files_deleted":     counters.FilesDeleted,
		"buckets_moved":     counters.BucketsMoved,
		"bytes_moved":       counters.BytesMoved,
		"buckets_purged":    counters.BucketsPurged,
		"bytes_purged":      counters.BytesPurged,
		"error_count":       counters.ErrorCount,
		"message":           message,
	}

	result := s.db.Model(&LifecycleRun{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update run %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("run with ID %s not found", id)
	}

	return nil
}

// UpdateLogFilePath attaches the runlog file path to a run
func (s *DBStore) UpdateLogFilePath(id string, logFilePath string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	result := s.db.Model(&LifecycleRun{}).Where("id = ?", id).
		Update("log_file_path", logFilePath)
	if result.Error != nil {
		return fmt.Errorf("failed to update run %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("run with ID %s not found", id)
	}

	return nil
}

// GetRuns returns all recorded runs, newest first
func (s *DBStore) GetRuns() []types.RunMeta {
	return s.GetRunsFiltered("", 0)
}

// GetRunsFiltered returns runs for one component, newest first
func (s *DBStore) GetRunsFiltered(component string, limit int) []types.RunMeta {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	query := s.db.Model(&LifecycleRun{}).Order("started_at DESC")
	if component != "" {
		query = query.Where("component = ?", component)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []LifecycleRun
	if err := query.Find(&records).Error; err != nil {
		log.Printf("Warning: failed to query run history: %v", err)
		return nil
	}

	runs := make([]types.RunMeta, 0, len(records))
	for _, record := range records {
		runs = append(runs, recordToRun(record))
	}

	return runs
}

// GetRunByID returns a specific run by ID
func (s *DBStore) GetRunByID(id string) (types.RunMeta, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var record LifecycleRun
	if err := s.db.First(&record, "id = ?", id).Error; err != nil {
		return types.RunMeta{}, false
	}

	return recordToRun(record), true
}

// GetStats returns aggregate statistics about recorded runs
func (s *DBStore) GetStats() map[string]interface{} {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	stats := map[string]interface{}{}

	var total int64
	if err := s.db.Model(&LifecycleRun{}).Count(&total).Error; err != nil {
		log.Printf("Warning: failed to count run history: %v", err)
		return stats
	}
	stats["totalRuns"] = int(total)

	byComponent := make(map[string]int)
	byStatus := make(map[string]int)

	type grouped struct {
		Component string
		Status    string
		Count     int
	}
	var groups []grouped
	if err := s.db.Model(&LifecycleRun{}).
		Select("component, status, count(*) as count").
		Group("component, status").
		Find(&groups).Error; err == nil {
		for _, g := range groups {
			byComponent[g.Component] += g.Count
			byStatus[g.Status] += g.Count
		}
	}

	stats["byComponent"] = byComponent
	stats["byStatus"] = byStatus

	return stats
}

// Load is a no-op for the database-backed store
func (s *DBStore) Load() error {
	return nil
}

// Save is a no-op for the database-backed store
func (s *DBStore) Save() error {
	return nil
}

// runToRecord converts a RunMeta to its database representation
func runToRecord(meta types.RunMeta) LifecycleRun {
	record := LifecycleRun{
		ID:               meta.ID,
		Component:        meta.Component,
		StartedAt:        meta.StartedAt,
		Status:           string(meta.Status),
		DryRun:           meta.DryRun,
		FilesTransferred: meta.Counters.FilesTransferred,
		BytesTransferred: meta.Counters.BytesTransferred,
		FilesDeleted:     meta.Counters.FilesDeleted,
		BucketsMoved:     meta.Counters.BucketsMoved,
		BytesMoved:       meta.Counters.BytesMoved,
		BucketsPurged:    meta.Counters.BucketsPurged,
		BytesPurged:      meta.Counters.BytesPurged,
		ErrorCount:       meta.Counters.ErrorCount,
		Message:          meta.Message,
		LogFilePath:      meta.LogFilePath,
	}

	if !meta.CompletedAt.IsZero() {
		completed := meta.CompletedAt
		record.CompletedAt = &completed
	}

	return record
}

// recordToRun converts a database record back to a RunMeta
func recordToRun(record LifecycleRun) types.RunMeta {
	meta := types.RunMeta{
		ID:        record.ID,
		Component: record.Component,
		StartedAt: record.StartedAt,
		Status:    types.RunStatus(record.Status),
		DryRun:    record.DryRun,
		Counters: types.RunCounters{
			FilesTransferred: record.FilesTransferred,
			BytesTransferred: record.BytesTransferred,
			FilesDeleted:     record.FilesDeleted,
			BucketsMoved:     record.BucketsMoved,
			BytesMoved:       record.BytesMoved,
			BucketsPurged:    record.BucketsPurged,
			BytesPurged:      record.BytesPurged,
			ErrorCount:       record.ErrorCount,
		},
		Message:     record.Message,
		LogFilePath: record.LogFilePath,
	}

	if record.CompletedAt != nil {
		meta.CompletedAt = *record.CompletedAt
	}

	return meta
}
