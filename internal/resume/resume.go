// Package resume implements the pre-flight resume decision: deciding,
// from a persisted ResumeEntry and a freshly probed UrlInfo, whether a
// download can continue where it left off, and which validation
// conflicts (if any) the caller must arbitrate.
//
// ResumeEntry mirrors a DownloadState persistence shape, and Evaluate's
// proceed/restart branching generalizes the same decision around a
// store-agnostic ResumeEntry/ResumeStore split instead of a single
// SQLite-coupled state object.
package resume

import (
	"strings"

	"github.com/surge-downloader/surge/internal/prefetch"
	"github.com/surge-downloader/surge/internal/progress"
)

// ResumeEntry is the persisted record keyed by FilePath.
//
// Status is a supplement carried over from a richer DownloadState shape:
// it lets `surge ls`/`surge status` render a download's lifecycle
// without needing a running daemon to ask.
type ResumeEntry struct {
	// ID is a stable identifier for CLI addressing (surge ls/status/pause/
	// resume/rm), independent of FilePath so a file can be moved or
	// renamed without losing its history. Assigned by the store on first
	// Put if empty, via uuid.New().String() when absent.
	ID           string
	FilePath     string
	TotalSize    uint64
	ETag         string
	LastModified string
	Progress     *progress.Set
	ElapsedMs    uint64
	FileName     string
	SourceURL    string
	Status       Status
}

// Status is a lifecycle label persisted alongside each ResumeEntry.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusDownloading Status = "downloading"
	StatusPaused      Status = "paused"
	StatusCompleted   Status = "completed"
	StatusError       Status = "error"
)

// Conflict identifies which piece of origin metadata diverged from the
// persisted entry.
type Conflict string

const (
	SizeChanged         Conflict = "SizeChanged"
	EtagChanged         Conflict = "EtagChanged"
	WeakEtag            Conflict = "WeakEtag"
	NoEtag              Conflict = "NoEtag"
	LastModifiedChanged Conflict = "LastModifiedChanged"
)

// Plan is what the caller acts on after Evaluate: either a clean
// resume candidate (Chunks/WriteProgress populated, Conflicts empty) or
// a set of conflicts for the caller to arbitrate.
type Plan struct {
	ShouldResume  bool
	Chunks        []progress.ByteRange
	WriteProgress *progress.Set
	Conflicts     []Conflict
}

// Evaluate decides whether entry can be resumed against info. entry may
// be nil (no prior state).
func Evaluate(entry *ResumeEntry, info prefetch.UrlInfo) Plan {
	if entry == nil || !info.FastDownload() {
		return Plan{ShouldResume: false}
	}
	if entry.Progress == nil || entry.Progress.Total() >= uint64(info.Size) {
		return Plan{ShouldResume: false}
	}

	conflicts := validate(entry, info)
	if len(conflicts) > 0 {
		return Plan{ShouldResume: false, Conflicts: conflicts}
	}

	return Plan{
		ShouldResume:  true,
		Chunks:        entry.Progress.Complement(uint64(info.Size)),
		WriteProgress: entry.Progress.Clone(),
	}
}

func validate(entry *ResumeEntry, info prefetch.UrlInfo) []Conflict {
	var conflicts []Conflict

	if entry.TotalSize != uint64(info.Size) {
		conflicts = append(conflicts, SizeChanged)
	}

	switch {
	case info.ETag == "":
		conflicts = append(conflicts, NoEtag)
	case isWeakETag(info.ETag):
		conflicts = append(conflicts, WeakEtag)
	case entry.ETag != info.ETag:
		conflicts = append(conflicts, EtagChanged)
	}

	if entry.LastModified != "" && info.LastModified != "" && entry.LastModified != info.LastModified {
		conflicts = append(conflicts, LastModifiedChanged)
	}

	return conflicts
}

func isWeakETag(etag string) bool {
	return strings.HasPrefix(etag, "W/")
}

// FreshEntry builds a "restart" ResumeEntry covering the whole resource,
// the shape a restart seeds once the sink has been (re)opened.
func FreshEntry(filePath, fileName, sourceURL string, info prefetch.UrlInfo) *ResumeEntry {
	return &ResumeEntry{
		FilePath:     filePath,
		TotalSize:    uint64(info.Size),
		ETag:         info.ETag,
		LastModified: info.LastModified,
		Progress:     progress.NewSet(),
		FileName:     fileName,
		SourceURL:    sourceURL,
		Status:       StatusQueued,
	}
}
