// Package runlog implements the append-only action log shared by the mirror
// and retention jobs. Every state-changing action (or would-be action in
// dry-run) is written as one timestamped line to a per-component log file and
// echoed to standard output. Log rotation is left to external tooling.
package runlog

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Level indicates the severity of a log entry
type Level string

const (
	// LevelInfo is for routine actions (moves, syncs, summaries)
	LevelInfo Level = "INFO"
	// LevelWarn is for transient conditions that do not affect the result
	LevelWarn Level = "WARN"
	// LevelError is for per-item failures and fatal conditions
	LevelError Level = "ERROR"
)

// Logger appends timestamped entries to a log file and stdout. A Logger
// never fails its caller: if the file cannot be opened or written, entries
// degrade to stdout only.
type Logger struct {
	component string
	file      *os.File
	mutex     sync.Mutex
}

// New creates a logger appending to <directory>/<component>.log. An empty
// directory yields a stdout-only logger.
func New(directory, component string) *Logger {
	l := &Logger{component: component}

	if directory == "" {
		return l
	}

	if err := os.MkdirAll(directory, 0755); err != nil {
		log.Printf("Warning: cannot create log directory %s, logging to stdout only: %v", directory, err)
		return l
	}

	path := filepath.Join(directory, component+".log")
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("Warning: cannot open log file %s, logging to stdout only: %v", path, err)
		return l
	}

	l.file = file
	return l
}

// Close releases the underlying log file
func (l *Logger) Close() {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.file != nil {
		_ = l.file.Close()
		l.file = nil
	}
}

// Path returns the log file path, or empty for a stdout-only logger
func (l *Logger) Path() string {
	if l.file == nil {
		return ""
	}
	return l.file.Name()
}

// Info logs a routine action
func (l *Logger) Info(format string, args ...interface{}) {
	l.write(LevelInfo, format, args...)
}

// Warn logs a transient condition
func (l *Logger) Warn(format string, args ...interface{}) {
	l.write(LevelWarn, format, args...)
}

// Error logs a failure
func (l *Logger) Error(format string, args ...interface{}) {
	l.write(LevelError, format, args...)
}

func (l *Logger) write(level Level, format string, args ...interface{}) {
	line := fmt.Sprintf("%s [%s] %s",
		time.Now().Format("2006-01-02 15:04:05"), level, fmt.Sprintf(format, args...))

	l.mutex.Lock()
	defer l.mutex.Unlock()

	// Stdout echo goes through the standard logger for a consistent texture
	// with the rest of the process output
	log.Printf("[%s] [%s] %s", l.component, level, fmt.Sprintf(format, args...))

	if l.file != nil {
		if _, err := fmt.Fprintln(l.file, line); err != nil {
			// Degrade to stdout only; never abort the calling job
			log.Printf("Warning: failed to write %s log entry: %v", l.component, err)
		}
	}
}
