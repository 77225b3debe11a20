package main

import (
	"fmt"
	"strings"

	"github.com/surge-downloader/surge/internal/resume"
)

// resolveID resolves a full or partial ID/file-path argument to a
// persisted ResumeEntry via a partial-UUID-prefix lookup, generalized
// to also accept an exact file path (google/uuid's New().String()
// output is 36 characters, so anything shorter is treated as a prefix).
func resolveID(arg string) (*resume.ResumeEntry, error) {
	if entry, err := store.Get(arg); err == nil && entry != nil {
		return entry, nil
	}

	if len(arg) == 36 {
		entry, err := store.GetByID(arg)
		if err != nil {
			return nil, fmt.Errorf("looking up %q: %w", arg, err)
		}
		if entry != nil {
			return entry, nil
		}
	}

	entries, err := store.List()
	if err != nil {
		return nil, fmt.Errorf("listing downloads: %w", err)
	}

	var matches []*resume.ResumeEntry
	for _, e := range entries {
		if strings.HasPrefix(e.ID, arg) {
			matches = append(matches, e)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no download matches %q", arg)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous ID prefix %q matches %d downloads", arg, len(matches))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
