// Package config provides configuration loading and management for GoStorageGuard
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// MirrorConfig defines the primary→replica mirror job settings
type MirrorConfig struct {
	PrimaryRoot     string   `yaml:"primaryRoot"`
	ReplicaRoot     string   `yaml:"replicaRoot"`
	DeleteOrphans   bool     `yaml:"deleteOrphans"`
	ExcludePatterns []string `yaml:"excludePatterns"`
	Schedule        string   `yaml:"schedule"` // Cron schedule format
	RsyncPath       string   `yaml:"rsyncPath"`
}

// RetentionConfig defines the hot→warm tiered retention settings
type RetentionConfig struct {
	HotRoot            string `yaml:"hotRoot"`
	WarmRoot           string `yaml:"warmRoot"`
	HotRetentionDays   int    `yaml:"hotRetentionDays"`
	TotalRetentionDays int    `yaml:"totalRetentionDays"`
	RequireMounts      bool   `yaml:"requireMounts"`
	Schedule           string `yaml:"schedule"` // Cron schedule format
}

// LogConfig defines where the append-only run logs and run history live
type LogConfig struct {
	Directory string `yaml:"directory"`
}

// AdminConfig defines admin/metrics server settings
type AdminConfig struct {
	Port string `yaml:"port"`
}

// RunDBConfig defines MySQL connection settings for the run-history database
type RunDBConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	Database        string `yaml:"database"`
	MaxOpenConns    int    `yaml:"maxOpenConns"`
	MaxIdleConns    int    `yaml:"maxIdleConns"`
	ConnMaxLifetime string `yaml:"connMaxLifetime"`
	AutoMigrate     bool   `yaml:"autoMigrate"`
}

// AppConfig contains the complete application configuration
type AppConfig struct {
	Mirror     MirrorConfig    `yaml:"mirror"`
	Retention  RetentionConfig `yaml:"retention"`
	Log        LogConfig       `yaml:"log"`
	Admin      AdminConfig     `yaml:"admin"`
	RunDB      RunDBConfig     `yaml:"run_database"`
	Debug      bool            `yaml:"debug"`
	ConfigFile string          `json:"configFile,omitempty"`
}

// CFG is the global configuration object
var CFG AppConfig

// LoadConfiguration loads configuration from environment variables and an
// optional YAML config file referenced by CONFIG_FILE
func LoadConfiguration() {
	log.Println("Loading configuration from environment variables...")
	loadFromEnvironment()

	if configFile := getEnvOrDefault("CONFIG_FILE", ""); configFile != "" {
		if err := loadFromFile(configFile); err != nil {
			log.Printf("Warning: failed to load config file %s: %v", configFile, err)
		} else {
			CFG.ConfigFile = configFile
			log.Printf("Loaded configuration overrides from %s", configFile)
		}
	}

	setDefaults()

	if CFG.Debug {
		log.Printf("Configuration loaded: %+v\n", CFG)
	}
}

// loadFromEnvironment loads configuration from environment variables
func loadFromEnvironment() {
	// Debug setting
	CFG.Debug = parseEnvBool("DEBUG", false)

	// Mirror settings
	CFG.Mirror.PrimaryRoot = getEnvOrDefault("PRIMARY_ROOT", "")
	CFG.Mirror.ReplicaRoot = getEnvOrDefault("REPLICA_ROOT", "")
	CFG.Mirror.DeleteOrphans = parseEnvBool("MIRROR_DELETE_ORPHANS", true)
	CFG.Mirror.Schedule = getEnvOrDefault("MIRROR_SCHEDULE", "")
	CFG.Mirror.RsyncPath = getEnvOrDefault("MIRROR_RSYNC_PATH", "")

	if excludes := getEnvOrDefault("MIRROR_EXCLUDES", ""); excludes != "" {
		for _, pattern := range strings.Split(excludes, ",") {
			pattern = strings.TrimSpace(pattern)
			if pattern != "" {
				CFG.Mirror.ExcludePatterns = append(CFG.Mirror.ExcludePatterns, pattern)
			}
		}
	}

	// Retention settings
	CFG.Retention.HotRoot = getEnvOrDefault("HOT_ROOT", "")
	CFG.Retention.WarmRoot = getEnvOrDefault("WARM_ROOT", "")
	CFG.Retention.HotRetentionDays = parseEnvInt("HOT_RETENTION_DAYS", 0)
	CFG.Retention.TotalRetentionDays = parseEnvInt("TOTAL_RETENTION_DAYS", 0)
	CFG.Retention.RequireMounts = parseEnvBool("RETENTION_REQUIRE_MOUNTS", true)
	CFG.Retention.Schedule = getEnvOrDefault("RETENTION_SCHEDULE", "")

	// Log settings
	CFG.Log.Directory = getEnvOrDefault("LOG_DIRECTORY", "")

	// Admin server settings
	CFG.Admin.Port = getEnvOrDefault("ADMIN_PORT", "8080")

	// Run-history DB settings
	CFG.RunDB.Enabled = parseEnvBool("RUN_DB_ENABLED", false)
	CFG.RunDB.Host = getEnvOrDefault("RUN_DB_HOST", "localhost")
	CFG.RunDB.Port = parseEnvInt("RUN_DB_PORT", 3306)
	CFG.RunDB.Username = getEnvOrDefault("RUN_DB_USERNAME", "storageguard")
	CFG.RunDB.Password = getEnvOrDefault("RUN_DB_PASSWORD", "")
	CFG.RunDB.Database = getEnvOrDefault("RUN_DB_DATABASE", "storageguard_runs")
	CFG.RunDB.MaxOpenConns = parseEnvInt("RUN_DB_MAX_OPEN_CONNS", 10)
	CFG.RunDB.MaxIdleConns = parseEnvInt("RUN_DB_MAX_IDLE_CONNS", 5)
	CFG.RunDB.ConnMaxLifetime = getEnvOrDefault("RUN_DB_CONN_MAX_LIFETIME", "5m")
	CFG.RunDB.AutoMigrate = parseEnvBool("RUN_DB_AUTO_MIGRATE", true)
}

// loadFromFile overlays configuration from a YAML file
func loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &CFG); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// setDefaults ensures all config fields have reasonable default values
func setDefaults() {
	if CFG.Admin.Port == "" {
		CFG.Admin.Port = "8080"
	}

	if CFG.Mirror.Schedule == "" {
		CFG.Mirror.Schedule = "30 2 * * *" // Daily at 02:30
	}

	if CFG.Mirror.RsyncPath == "" {
		CFG.Mirror.RsyncPath = "rsync"
	}

	if CFG.Retention.Schedule == "" {
		CFG.Retention.Schedule = "0 3 * * *" // Daily at 03:00
	}

	if CFG.Retention.HotRetentionDays == 0 {
		CFG.Retention.HotRetentionDays = 14
	}

	if CFG.Retention.TotalRetentionDays == 0 {
		CFG.Retention.TotalRetentionDays = 44
	}

	// Run logs default to a replication subtree of the primary root
	if CFG.Log.Directory == "" && CFG.Mirror.PrimaryRoot != "" {
		CFG.Log.Directory = filepath.Join(CFG.Mirror.PrimaryRoot, "replication")
	}

	// Set defaults for run-history database if enabled
	if CFG.RunDB.Enabled {
		if CFG.RunDB.Host == "" {
			CFG.RunDB.Host = "localhost"
		}
		if CFG.RunDB.Port == 0 {
			CFG.RunDB.Port = 3306
		}
		if CFG.RunDB.Database == "" {
			CFG.RunDB.Database = "storageguard_runs"
		}
		if CFG.RunDB.MaxOpenConns == 0 {
			CFG.RunDB.MaxOpenConns = 10
		}
		if CFG.RunDB.MaxIdleConns == 0 {
			CFG.RunDB.MaxIdleConns = 5
		}
		if CFG.RunDB.ConnMaxLifetime == "" {
			CFG.RunDB.ConnMaxLifetime = "5m"
		}
	}
}

// MirrorConfigured reports whether the mirror job has both roots set
func MirrorConfigured() bool {
	return CFG.Mirror.PrimaryRoot != "" && CFG.Mirror.ReplicaRoot != ""
}

// RetentionConfigured reports whether the retention job has both roots set
func RetentionConfigured() bool {
	return CFG.Retention.HotRoot != "" && CFG.Retention.WarmRoot != ""
}

// ValidateConfig validates the configuration
func ValidateConfig() error {
	if !MirrorConfigured() && !RetentionConfigured() {
		return fmt.Errorf("at least one job (mirror or retention) must be configured")
	}

	// Validate mirror configuration
	if MirrorConfigured() {
		if !filepath.IsAbs(CFG.Mirror.PrimaryRoot) {
			return fmt.Errorf("primary root must be an absolute path: %s", CFG.Mirror.PrimaryRoot)
		}

		if !filepath.IsAbs(CFG.Mirror.ReplicaRoot) {
			return fmt.Errorf("replica root must be an absolute path: %s", CFG.Mirror.ReplicaRoot)
		}

		if filepath.Clean(CFG.Mirror.PrimaryRoot) == filepath.Clean(CFG.Mirror.ReplicaRoot) {
			return fmt.Errorf("primary root and replica root must be different paths")
		}
	} else if CFG.Mirror.PrimaryRoot != "" || CFG.Mirror.ReplicaRoot != "" {
		return fmt.Errorf("mirror requires both PRIMARY_ROOT and REPLICA_ROOT to be set")
	}

	// Validate retention configuration
	if RetentionConfigured() {
		if !filepath.IsAbs(CFG.Retention.HotRoot) {
			return fmt.Errorf("hot root must be an absolute path: %s", CFG.Retention.HotRoot)
		}

		if !filepath.IsAbs(CFG.Retention.WarmRoot) {
			return fmt.Errorf("warm root must be an absolute path: %s", CFG.Retention.WarmRoot)
		}

		if filepath.Clean(CFG.Retention.HotRoot) == filepath.Clean(CFG.Retention.WarmRoot) {
			return fmt.Errorf("hot root and warm root must be different paths")
		}

		if CFG.Retention.HotRetentionDays <= 0 {
			return fmt.Errorf("hot retention days must be positive, got %d", CFG.Retention.HotRetentionDays)
		}

		if CFG.Retention.TotalRetentionDays <= CFG.Retention.HotRetentionDays {
			return fmt.Errorf("total retention days (%d) must be greater than hot retention days (%d)",
				CFG.Retention.TotalRetentionDays, CFG.Retention.HotRetentionDays)
		}
	} else if CFG.Retention.HotRoot != "" || CFG.Retention.WarmRoot != "" {
		return fmt.Errorf("retention requires both HOT_ROOT and WARM_ROOT to be set")
	}

	if CFG.Log.Directory != "" && !filepath.IsAbs(CFG.Log.Directory) {
		return fmt.Errorf("log directory must be an absolute path: %s", CFG.Log.Directory)
	}

	return nil
}

// Helper functions for environment variables

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	if defaultValue != "" && os.Getenv("DEBUG") == "true" {
		log.Printf("Environment variable %s not set. Using default: %s", key, defaultValue)
	}
	return defaultValue
}

func parseEnvBool(key string, defaultValue bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		if os.Getenv("DEBUG") == "true" {
			log.Printf("Environment variable %s not set. Using default: %t", key, defaultValue)
		}
		return defaultValue
	}
	value = strings.ToLower(value)

	// Handle additional truthy and falsy values
	switch value {
	case "1", "t", "true", "yes", "on", "enabled":
		return true
	case "0", "f", "false", "no", "off", "disabled":
		return false
	default:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			log.Printf("Error parsing %s as bool: %v. Using default value: %t", key, err, defaultValue)
			return defaultValue
		}
		return boolValue
	}
}

func parseEnvInt(key string, defaultValue int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Error parsing %s as int: %v. Using default value: %d", key, err, defaultValue)
		return defaultValue
	}
	return intValue
}

// DisplayConfiguration outputs the current configuration in a readable format
// while masking sensitive information
func DisplayConfiguration() {
	log.Println("========== GoStorageGuard Configuration ==========")

	// General settings
	log.Printf("Debug Mode: %t", CFG.Debug)
	log.Printf("Config File: %s", CFG.ConfigFile)

	// Mirror settings
	log.Println("\n----- Mirror Configuration -----")
	if MirrorConfigured() {
		log.Printf("Primary Root: %s", CFG.Mirror.PrimaryRoot)
		log.Printf("Replica Root: %s", CFG.Mirror.ReplicaRoot)
		log.Printf("Delete Orphans: %t", CFG.Mirror.DeleteOrphans)
		log.Printf("Schedule: %s", CFG.Mirror.Schedule)
		log.Printf("Rsync Path: %s", CFG.Mirror.RsyncPath)

		log.Println("Exclude Patterns:")
		if len(CFG.Mirror.ExcludePatterns) > 0 {
			for _, pattern := range CFG.Mirror.ExcludePatterns {
				log.Printf("  - %s", pattern)
			}
		} else {
			log.Println("  [Empty - full tree is mirrored]")
		}
	} else {
		log.Println("Mirror job is not configured.")
	}

	// Retention settings
	log.Println("\n----- Retention Configuration -----")
	if RetentionConfigured() {
		log.Printf("Hot Root: %s", CFG.Retention.HotRoot)
		log.Printf("Warm Root: %s", CFG.Retention.WarmRoot)
		log.Printf("Hot Retention Days: %d", CFG.Retention.HotRetentionDays)
		log.Printf("Total Retention Days: %d", CFG.Retention.TotalRetentionDays)
		log.Printf("Require Mounts: %t", CFG.Retention.RequireMounts)
		log.Printf("Schedule: %s", CFG.Retention.Schedule)
	} else {
		log.Println("Retention job is not configured.")
	}

	// Log settings
	log.Println("\n----- Log Configuration -----")
	log.Printf("Directory: %s", CFG.Log.Directory)

	// Admin server settings
	log.Println("\n----- Admin Server Configuration -----")
	log.Printf("Port: %s", CFG.Admin.Port)

	// Run-history DB settings if enabled
	if CFG.RunDB.Enabled {
		log.Println("\n----- Run History Database Configuration -----")
		log.Printf("Host: %s", CFG.RunDB.Host)
		log.Printf("Port: %d", CFG.RunDB.Port)
		log.Printf("Username: %s", CFG.RunDB.Username)
		log.Printf("Password: %s", maskSensitiveInfo(CFG.RunDB.Password))
		log.Printf("Database: %s", CFG.RunDB.Database)
		log.Printf("Max Open Connections: %d", CFG.RunDB.MaxOpenConns)
		log.Printf("Max Idle Connections: %d", CFG.RunDB.MaxIdleConns)
		log.Printf("Connection Max Lifetime: %s", CFG.RunDB.ConnMaxLifetime)
		log.Printf("Auto Migrate: %t", CFG.RunDB.AutoMigrate)
	}

	log.Println("==================================================")
}

// maskSensitiveInfo masks sensitive information for logging
func maskSensitiveInfo(info string) string {
	if info == "" {
		return "[not set]"
	}

	if len(info) <= 4 {
		return "****"
	}

	// Show first and last character, mask the rest
	return info[:2] + "****" + info[len(info)-2:]
}
