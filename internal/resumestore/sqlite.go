package resumestore

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/surge-downloader/surge/internal/progress"
	"github.com/surge-downloader/surge/internal/resume"
)

const schema = `
CREATE TABLE IF NOT EXISTS resume_entries (
	file_path     TEXT PRIMARY KEY,
	id            TEXT NOT NULL DEFAULT '',
	source_url    TEXT NOT NULL,
	file_name     TEXT NOT NULL,
	total_size    INTEGER NOT NULL,
	etag          TEXT NOT NULL DEFAULT '',
	last_modified TEXT NOT NULL DEFAULT '',
	progress      TEXT NOT NULL DEFAULT '',
	elapsed_ms    INTEGER NOT NULL DEFAULT 0,
	status        TEXT NOT NULL DEFAULT 'queued',
	updated_at    INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS resume_entries_id ON resume_entries(id) WHERE id != '';
`

// SQLiteStore persists ResumeEntry rows keyed by file_path: upsert-by-
// key, single table, no FK cascade relied upon. Everything lives in one
// table since ResumeEntry.Progress already serializes to a single
// column via the progress package's on-disk encoding.
type SQLiteStore struct {
	mu sync.Mutex
	db *sql.DB
}

// Open creates or attaches to a SQLite database at path (use ":memory:"
// for ephemeral test stores) and ensures the schema exists.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("resumestore: open: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("resumestore: create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func (s *SQLiteStore) withTx(fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

const selectColumns = "file_path, id, source_url, file_name, total_size, etag, last_modified, progress, elapsed_ms, status"

func (s *SQLiteStore) Get(filePath string) (*resume.ResumeEntry, error) {
	s.mu.Lock()
	row := s.db.QueryRow("SELECT "+selectColumns+" FROM resume_entries WHERE file_path = ?", filePath)

	e, err := scanEntry(row)
	s.mu.Unlock()

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resumestore: get: %w", err)
	}
	return e, nil
}

// GetByID looks up an entry by its CLI-facing ID rather than file path,
// for `surge ls`/`status`/`pause`/`resume`/`rm <id>`.
func (s *SQLiteStore) GetByID(id string) (*resume.ResumeEntry, error) {
	s.mu.Lock()
	row := s.db.QueryRow("SELECT "+selectColumns+" FROM resume_entries WHERE id = ?", id)

	e, err := scanEntry(row)
	s.mu.Unlock()

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resumestore: get by id: %w", err)
	}
	return e, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*resume.ResumeEntry, error) {
	var e resume.ResumeEntry
	var encodedProgress, status string
	err := row.Scan(&e.FilePath, &e.ID, &e.SourceURL, &e.FileName, &e.TotalSize, &e.ETag, &e.LastModified, &encodedProgress, &e.ElapsedMs, &status)
	if err != nil {
		return nil, err
	}
	e.Progress = progress.Parse(encodedProgress)
	e.Status = resume.Status(status)
	return &e, nil
}

func (s *SQLiteStore) Put(entry *resume.ResumeEntry) error {
	encoded := ""
	if entry.Progress != nil {
		encoded = progress.Format(entry.Progress)
	}
	status := entry.Status
	if status == "" {
		status = resume.StatusQueued
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO resume_entries (
				file_path, id, source_url, file_name, total_size, etag, last_modified, progress, elapsed_ms, status, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(file_path) DO UPDATE SET
				source_url=excluded.source_url,
				file_name=excluded.file_name,
				total_size=excluded.total_size,
				etag=excluded.etag,
				last_modified=excluded.last_modified,
				progress=excluded.progress,
				elapsed_ms=excluded.elapsed_ms,
				status=excluded.status,
				updated_at=excluded.updated_at
		`, entry.FilePath, entry.ID, entry.SourceURL, entry.FileName, entry.TotalSize, entry.ETag, entry.LastModified, encoded, entry.ElapsedMs, string(status), time.Now().Unix())
		if err != nil {
			return fmt.Errorf("resumestore: put: %w", err)
		}
		return nil
	})
}

// List returns every persisted entry, ordered by most recently updated.
func (s *SQLiteStore) List() ([]*resume.ResumeEntry, error) {
	s.mu.Lock()
	rows, err := s.db.Query("SELECT " + selectColumns + " FROM resume_entries ORDER BY updated_at DESC")
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("resumestore: list: %w", err)
	}

	var entries []*resume.ResumeEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			rows.Close()
			s.mu.Unlock()
			return nil, fmt.Errorf("resumestore: list scan: %w", err)
		}
		entries = append(entries, e)
	}
	rows.Close()
	s.mu.Unlock()
	return entries, rows.Err()
}

// UpdateStatus sets the lifecycle status of an existing entry.
func (s *SQLiteStore) UpdateStatus(filePath string, status resume.Status) error {
	return s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE resume_entries SET status = ?, updated_at = ? WHERE file_path = ?
		`, string(status), time.Now().Unix(), filePath)
		if err != nil {
			return fmt.Errorf("resumestore: update status: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("resumestore: update status: no entry for %q", filePath)
		}
		return nil
	})
}

func (s *SQLiteStore) Update(filePath string, set *progress.Set, elapsedMs uint64) error {
	encoded := progress.Format(set)
	return s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE resume_entries SET progress = ?, elapsed_ms = ?, updated_at = ?
			WHERE file_path = ?
		`, encoded, elapsedMs, time.Now().Unix(), filePath)
		if err != nil {
			return fmt.Errorf("resumestore: update: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("resumestore: update: no entry for %q", filePath)
		}
		return nil
	})
}

func (s *SQLiteStore) Delete(filePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec("DELETE FROM resume_entries WHERE file_path = ?", filePath)
	if err != nil {
		return fmt.Errorf("resumestore: delete: %w", err)
	}
	return nil
}

// DeleteCompleted removes every entry whose persisted progress total
// already covers total_size.
func (s *SQLiteStore) DeleteCompleted() (int, error) {
	s.mu.Lock()
	rows, err := s.db.Query("SELECT file_path, total_size, progress FROM resume_entries")
	if err != nil {
		s.mu.Unlock()
		return 0, fmt.Errorf("resumestore: delete completed scan: %w", err)
	}

	type candidate struct {
		filePath  string
		totalSize uint64
	}
	var toDelete []candidate
	for rows.Next() {
		var c candidate
		var encoded string
		if err := rows.Scan(&c.filePath, &c.totalSize, &encoded); err != nil {
			rows.Close()
			s.mu.Unlock()
			return 0, err
		}
		if progress.Parse(encoded).Total() >= c.totalSize {
			toDelete = append(toDelete, c)
		}
	}
	rows.Close()
	s.mu.Unlock()

	for _, c := range toDelete {
		if err := s.Delete(c.filePath); err != nil {
			return 0, err
		}
	}
	return len(toDelete), nil
}
