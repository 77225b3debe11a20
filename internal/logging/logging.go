// Package logging provides the debug-to-file logger every other package
// calls into: one debug-YYYYMMDD-HHMMSS.log file per process, lazily
// opened once via sync.Once, with a CleanupLogs(keep) that prunes to
// the N newest files.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/surge-downloader/surge/internal/config"
)

var (
	mu        sync.Mutex
	once      sync.Once
	logger    *log.Logger
	logFile   *os.File
	targetDir string
)

// ConfigureDebug sets the directory Debug writes its log file into. It
// must be called before the first Debug call to take effect; calling it
// again resets the sync.Once so a subsequent Debug call opens a fresh
// file in the new directory (used by tests that redirect logs per-case).
func ConfigureDebug(dir string) {
	mu.Lock()
	defer mu.Unlock()
	targetDir = dir
	once = sync.Once{}
	if logFile != nil {
		logFile.Close()
		logFile = nil
		logger = nil
	}
}

func ensureLogger() {
	once.Do(func() {
		mu.Lock()
		dir := targetDir
		if dir == "" {
			dir = config.GetLogsDir()
		}
		mu.Unlock()

		if err := os.MkdirAll(dir, 0o755); err != nil {
			return
		}
		name := fmt.Sprintf("debug-%s.log", time.Now().Format("20060102-150405"))
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return
		}

		mu.Lock()
		logFile = f
		logger = log.New(f, "", log.LstdFlags|log.Lmicroseconds)
		mu.Unlock()
	})
}

// Debug writes a formatted line to the debug log, lazily creating it on
// first use. It is a no-op (never panics) if the log file could not be
// opened.
func Debug(format string, args ...any) {
	ensureLogger()
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		return
	}
	logger.Printf(format, args...)
}

// CleanupLogs keeps the keep newest debug-*.log files in the configured
// (or default) logs directory and removes the rest.
func CleanupLogs(keep int) {
	mu.Lock()
	dir := targetDir
	mu.Unlock()
	if dir == "" {
		dir = config.GetLogsDir()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasPrefix(e.Name(), "debug-") || !strings.HasSuffix(e.Name(), ".log") {
			continue
		}
		names = append(names, e.Name())
	}

	// The debug-YYYYMMDD-HHMMSS.log naming scheme sorts lexicographically
	// in timestamp order, so string comparison alone identifies the
	// newest files without relying on filesystem mtimes (which can all
	// collide when a batch of logs is written in the same instant).
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	if keep < 0 {
		keep = 0
	}
	for i := keep; i < len(names); i++ {
		os.Remove(filepath.Join(dir, names[i]))
	}
}
