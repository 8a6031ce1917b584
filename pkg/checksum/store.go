// Package checksum persists the mapping from indexed files to the content
// hash and collection they were last pushed with. The store is the source of
// truth for what the remote graph store should currently contain.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// ErrStorageCorrupt marks a checksum file that exists but cannot be parsed.
// Callers must treat it as fatal for the run; silently reinitializing the
// store would erase drift-detection history.
var ErrStorageCorrupt = errors.New("checksum store is corrupt")

const storeVersion = 1

// FileChecksum records the last successfully indexed state of one file
type FileChecksum struct {
	Path       string    `json:"path"` // relative to the sync root
	Hash       string    `json:"hash"` // sha256 hex of file bytes
	Collection string    `json:"collection"`
	IndexedAt  time.Time `json:"indexed_at"`
}

// Key returns the map key for a (path, collection) pair. The store holds at
// most one entry per pair.
func Key(path, collection string) string {
	return path + "\x00" + collection
}

type storeFile struct {
	Version int            `json:"version"`
	Entries []FileChecksum `json:"entries"`
}

// Store reads and writes the checksum file. Writes are atomic replaces; a
// reader never observes a half-written file.
type Store struct {
	path   string
	logger zerolog.Logger
}

// NewStore creates a store backed by the given file path
func NewStore(path string, logger zerolog.Logger) *Store {
	return &Store{
		path:   path,
		logger: logger.With().Str("component", "checksum-store").Logger(),
	}
}

// Path returns the backing file path
func (s *Store) Path() string {
	return s.path
}

// Load reads all entries, keyed by Key(path, collection). A missing file
// yields an empty map; an unparsable file yields ErrStorageCorrupt.
func (s *Store) Load() (map[string]FileChecksum, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]FileChecksum{}, nil
		}
		return nil, fmt.Errorf("failed to read checksum file: %w", err)
	}

	var sf storeFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrStorageCorrupt, s.path, err)
	}
	if sf.Version != storeVersion {
		return nil, fmt.Errorf("%w: %s: unsupported version %d", ErrStorageCorrupt, s.path, sf.Version)
	}

	entries := make(map[string]FileChecksum, len(sf.Entries))
	for _, e := range sf.Entries {
		if e.Path == "" || e.Hash == "" || e.Collection == "" {
			return nil, fmt.Errorf("%w: %s: entry with empty path, hash or collection", ErrStorageCorrupt, s.path)
		}
		entries[Key(e.Path, e.Collection)] = e
	}

	return entries, nil
}

// Save atomically replaces the checksum file with the given entries
func (s *Store) Save(entries map[string]FileChecksum) error {
	sf := storeFile{Version: storeVersion, Entries: make([]FileChecksum, 0, len(entries))}
	for _, e := range entries {
		sf.Entries = append(sf.Entries, e)
	}
	// Deterministic file contents keep diffs readable
	sort.Slice(sf.Entries, func(i, j int) bool {
		if sf.Entries[i].Path != sf.Entries[j].Path {
			return sf.Entries[i].Path < sf.Entries[j].Path
		}
		return sf.Entries[i].Collection < sf.Entries[j].Collection
	})

	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checksum entries: %w", err)
	}

	return atomicWrite(s.path, data)
}

// UpdateEntry records a successful push of one file
func (s *Store) UpdateEntry(path, hash, collection string, indexedAt time.Time) error {
	entries, err := s.Load()
	if err != nil {
		return err
	}

	entries[Key(path, collection)] = FileChecksum{
		Path:       path,
		Hash:       hash,
		Collection: collection,
		IndexedAt:  indexedAt,
	}

	return s.Save(entries)
}

// RemoveEntry deletes the entry for a (path, collection) pair. Removing a
// missing entry is not an error.
func (s *Store) RemoveEntry(path, collection string) error {
	entries, err := s.Load()
	if err != nil {
		return err
	}

	delete(entries, Key(path, collection))
	return s.Save(entries)
}

// atomicWrite writes data to a temp file in the target directory and renames
// it over the destination.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	return nil
}

// AtomicWriteFile exposes the write-to-temp-then-rename discipline for the
// other state files (sync state, checkpoints).
func AtomicWriteFile(path string, data []byte) error {
	return atomicWrite(path, data)
}

// HashBytes returns the sha256 hex digest of content
func HashBytes(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// HashFile returns the sha256 hex digest of the file at path
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
