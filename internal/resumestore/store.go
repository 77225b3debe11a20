// Package resumestore defines the ResumeStore contract and a concrete
// SQLite-backed implementation: table shape, upsert-then-refresh
// pattern, master list of downloads. SQLiteStore is the only
// implementation; tests use it over ":memory:".
package resumestore

import (
	"github.com/surge-downloader/surge/internal/progress"
	"github.com/surge-downloader/surge/internal/resume"
)

// Store is the out-of-core persistence contract for resumable download
// state: Get/Put/Update/DeleteCompleted.
type Store interface {
	// Get returns the persisted entry for filePath, or nil if none exists.
	Get(filePath string) (*resume.ResumeEntry, error)
	// GetByID returns the persisted entry for a CLI-facing ID, or nil if
	// none exists.
	GetByID(id string) (*resume.ResumeEntry, error)
	// Put inserts or replaces the entry for its FilePath.
	Put(entry *resume.ResumeEntry) error
	// Update refreshes progress and elapsed time for an existing entry.
	Update(filePath string, set *progress.Set, elapsedMs uint64) error
	// UpdateStatus sets only the lifecycle status of an existing entry, for
	// `surge pause`/`surge resume` to flip without touching progress.
	UpdateStatus(filePath string, status resume.Status) error
	// List returns every persisted entry, for `surge ls`.
	List() ([]*resume.ResumeEntry, error)
	// DeleteCompleted removes every entry whose progress fully covers its
	// TotalSize, and returns how many were removed.
	DeleteCompleted() (int, error)
	// Delete removes a single entry by file path, regardless of status.
	Delete(filePath string) error
	// Close releases underlying resources (the DB handle).
	Close() error
}
