// Package sources expands declared content sources into the concrete file
// set a sync run operates on.
package sources

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/harun/memsync/internal/config"
	"github.com/rs/zerolog"
)

// File is one resolved (file, collection) pair
type File struct {
	AbsPath    string
	RelPath    string // relative to the sync root, forward slashes
	Collection string
}

// Result holds the resolved file set and any misconfiguration warnings
type Result struct {
	Files []File

	// Warnings lists declared patterns that matched nothing. A silent
	// zero-match hides typos, so the resolver always reports them.
	Warnings []string
}

// Resolver expands source patterns against a sync root
type Resolver struct {
	root   string
	logger zerolog.Logger
}

// NewResolver creates a resolver rooted at the given directory
func NewResolver(root string, logger zerolog.Logger) *Resolver {
	return &Resolver{
		root:   root,
		logger: logger.With().Str("component", "source-resolver").Logger(),
	}
}

// Resolve expands every source into files, applies extension filters and
// exclusion patterns, deduplicates, and returns a deterministically ordered
// result. It reads the filesystem but never modifies it.
func (r *Resolver) Resolve(srcs []config.SourceConfig) (*Result, error) {
	result := &Result{}
	seen := make(map[string]bool)

	for _, src := range srcs {
		matches, err := r.expand(src.Pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to expand pattern %q: %w", src.Pattern, err)
		}

		var kept []string
		for _, rel := range matches {
			if !extensionAllowed(rel, src.Extensions) {
				continue
			}
			if excluded(rel, src.Exclude) {
				continue
			}
			kept = append(kept, rel)
		}

		if len(kept) == 0 {
			warning := fmt.Sprintf("pattern %q matched no files for collection %q", src.Pattern, src.Collection)
			result.Warnings = append(result.Warnings, warning)
			r.logger.Warn().Str("pattern", src.Pattern).Str("collection", src.Collection).
				Msg("Source pattern matched no files")
			continue
		}

		for _, rel := range kept {
			key := rel + "\x00" + src.Collection
			if seen[key] {
				continue
			}
			seen[key] = true
			result.Files = append(result.Files, File{
				AbsPath:    filepath.Join(r.root, filepath.FromSlash(rel)),
				RelPath:    rel,
				Collection: src.Collection,
			})
		}
	}

	sort.Slice(result.Files, func(i, j int) bool {
		if result.Files[i].RelPath != result.Files[j].RelPath {
			return result.Files[i].RelPath < result.Files[j].RelPath
		}
		return result.Files[i].Collection < result.Files[j].Collection
	})

	return result, nil
}

// expand returns the root-relative paths of regular files matching pattern.
// A pattern naming a directory includes everything beneath it.
func (r *Resolver) expand(pattern string) ([]string, error) {
	pattern = path.Clean(filepath.ToSlash(pattern))

	// Literal path fast path
	if !strings.ContainsAny(pattern, "*?[") {
		abs := filepath.Join(r.root, filepath.FromSlash(pattern))
		info, err := os.Stat(abs)
		if os.IsNotExist(err) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			return []string{pattern}, nil
		}
		// Directory: include the whole subtree
		pattern = path.Join(pattern, "**")
	}

	var matches []string
	err := filepath.WalkDir(r.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, relErr := filepath.Rel(r.root, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel == "." {
				return nil
			}
			// Local state and VCS metadata are never source content
			base := path.Base(rel)
			if base == config.DefaultStateDirName || base == ".git" || base == ".jj" {
				return filepath.SkipDir
			}
			return nil
		}

		if Match(pattern, rel) {
			matches = append(matches, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return matches, nil
}

// Match reports whether a root-relative path matches a glob pattern.
// Patterns use forward slashes; "*" and "?" match within a segment and "**"
// matches any number of segments.
func Match(pattern, rel string) bool {
	return matchSegments(strings.Split(pattern, "/"), strings.Split(rel, "/"))
}

func matchSegments(pat, segs []string) bool {
	if len(pat) == 0 {
		return len(segs) == 0
	}

	if pat[0] == "**" {
		if matchSegments(pat[1:], segs) {
			return true
		}
		if len(segs) > 0 {
			return matchSegments(pat, segs[1:])
		}
		return false
	}

	if len(segs) == 0 {
		return false
	}

	ok, err := path.Match(pat[0], segs[0])
	if err != nil || !ok {
		return false
	}
	return matchSegments(pat[1:], segs[1:])
}

func extensionAllowed(rel string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.ToLower(path.Ext(rel))
	for _, allowed := range extensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

func excluded(rel string, exclude []string) bool {
	for _, pattern := range exclude {
		if Match(path.Clean(filepath.ToSlash(pattern)), rel) {
			return true
		}
	}
	return false
}
