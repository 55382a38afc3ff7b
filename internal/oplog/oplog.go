// Package oplog writes warden's operational log: a rotating, timestamped
// line log for events that deserve a durable trace outside the audit tables
// (invalid transitions, forced overrides, rate-limit exhaustion).
package oplog

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger appends timestamped lines to a rotating file. The zero value and a
// nil *Logger are safe no-ops so call sites never need nil checks.
type Logger struct {
	mu  sync.Mutex
	out io.WriteCloser
}

// New creates a logger writing to path with rotation limits taken from the
// environment (WARDEN_LOG_MAX_SIZE in MB, WARDEN_LOG_MAX_BACKUPS,
// WARDEN_LOG_MAX_AGE in days, WARDEN_LOG_COMPRESS). An empty path returns a
// no-op logger.
func New(path string) *Logger {
	if path == "" {
		return nil
	}
	return &Logger{out: &lumberjack.Logger{
		Filename:   path,
		MaxSize:    getEnvInt("WARDEN_LOG_MAX_SIZE", 10),
		MaxBackups: getEnvInt("WARDEN_LOG_MAX_BACKUPS", 3),
		MaxAge:     getEnvInt("WARDEN_LOG_MAX_AGE", 7),
		Compress:   getEnvBool("WARDEN_LOG_COMPRESS", true),
	}}
}

// Logf writes one timestamped line. Logging failures are swallowed: the log
// is diagnostic, never load-bearing.
func (l *Logger) Logf(format string, args ...interface{}) {
	if l == nil || l.out == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	_, _ = fmt.Fprintf(l.out, "[%s] %s\n", timestamp, msg)
}

// Close flushes and closes the underlying file.
func (l *Logger) Close() error {
	if l == nil || l.out == nil {
		return nil
	}
	return l.out.Close()
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1"
	}
	return defaultValue
}
