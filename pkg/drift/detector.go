// Package drift classifies every indexed entry against the current
// filesystem state. It is a pure function over inputs the caller supplies
// and never touches the network or mutates the checksum store.
package drift

import (
	"sort"

	"github.com/harun/memsync/pkg/checksum"
)

// FileState is the current on-disk observation of one candidate file
type FileState struct {
	Path       string
	Collection string
	Hash       string
}

// Entry describes one indexed file whose state diverged from the store.
// CurrentHash is empty when the file no longer exists on disk.
type Entry struct {
	Path        string `json:"path"`
	Collection  string `json:"collection"`
	IndexedHash string `json:"indexed_hash"`
	CurrentHash string `json:"current_hash,omitempty"`
}

// Stale reports whether the file still exists with different content
func (e Entry) Stale() bool {
	return e.CurrentHash != "" && e.CurrentHash != e.IndexedHash
}

// Orphaned reports whether the indexed file is gone from disk
func (e Entry) Orphaned() bool {
	return e.CurrentHash == ""
}

// RenamePair is a candidate rename: an orphaned entry whose indexed hash
// exactly matches a file currently on disk. Never applied automatically
// because identical content at two paths can be a legitimate duplicate.
type RenamePair struct {
	OldPath    string `json:"old_path"`
	NewPath    string `json:"new_path"`
	Collection string `json:"collection"`
	Hash       string `json:"hash"`
}

// Report is the full classification of one detection pass
type Report struct {
	UnchangedCount int          `json:"unchanged_count"`
	Stale          []Entry      `json:"stale"`
	Orphaned       []Entry      `json:"orphaned"`
	New            []FileState  `json:"new"`
	Renames        []RenamePair `json:"renames"`
}

// Clean reports whether the store and the filesystem agree exactly
func (r Report) Clean() bool {
	return len(r.Stale) == 0 && len(r.Orphaned) == 0 && len(r.New) == 0
}

// Detect compares the checksum store snapshot against the current
// filesystem state. Rename candidates are surfaced in addition to the
// orphaned entries they pair with, not instead of them.
func Detect(snapshot map[string]checksum.FileChecksum, current []FileState) Report {
	seen := make(map[string]bool, len(current))
	byHash := make(map[string][]FileState)

	var report Report

	for _, fs := range current {
		key := checksum.Key(fs.Path, fs.Collection)
		seen[key] = true
		// Every current file is a rename candidate, not just the new ones.
		// A surviving duplicate can explain an orphaned entry as well.
		byHash[fs.Hash] = append(byHash[fs.Hash], fs)

		indexed, ok := snapshot[key]
		if !ok {
			report.New = append(report.New, fs)
			continue
		}
		if indexed.Hash == fs.Hash {
			report.UnchangedCount++
			continue
		}
		report.Stale = append(report.Stale, Entry{
			Path:        fs.Path,
			Collection:  fs.Collection,
			IndexedHash: indexed.Hash,
			CurrentHash: fs.Hash,
		})
	}

	for key, indexed := range snapshot {
		if seen[key] {
			continue
		}
		report.Orphaned = append(report.Orphaned, Entry{
			Path:        indexed.Path,
			Collection:  indexed.Collection,
			IndexedHash: indexed.Hash,
		})
		for _, candidate := range byHash[indexed.Hash] {
			if candidate.Collection != indexed.Collection {
				continue
			}
			report.Renames = append(report.Renames, RenamePair{
				OldPath:    indexed.Path,
				NewPath:    candidate.Path,
				Collection: indexed.Collection,
				Hash:       indexed.Hash,
			})
		}
	}

	sortEntries(report.Stale)
	sortEntries(report.Orphaned)
	sort.Slice(report.New, func(i, j int) bool {
		if report.New[i].Path != report.New[j].Path {
			return report.New[i].Path < report.New[j].Path
		}
		return report.New[i].Collection < report.New[j].Collection
	})
	sort.Slice(report.Renames, func(i, j int) bool {
		if report.Renames[i].OldPath != report.Renames[j].OldPath {
			return report.Renames[i].OldPath < report.Renames[j].OldPath
		}
		return report.Renames[i].NewPath < report.Renames[j].NewPath
	})

	return report
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Path != entries[j].Path {
			return entries[i].Path < entries[j].Path
		}
		return entries[i].Collection < entries[j].Collection
	})
}
