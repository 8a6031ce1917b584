package syncer

import (
	"context"
	"sort"

	"github.com/harun/memsync/internal/observability"
	"github.com/harun/memsync/pkg/checksum"
	"github.com/harun/memsync/pkg/drift"
	"github.com/harun/memsync/pkg/sources"
)

// DriftReport hashes the current source set and classifies every indexed
// entry against it. Read-only: nothing is pushed or persisted.
func (s *Syncer) DriftReport(ctx context.Context) (*drift.Report, error) {
	snapshot, err := s.checksums.Load()
	if err != nil {
		return nil, err
	}

	states, _, err := s.currentFileStates()
	if err != nil {
		return nil, err
	}

	report := drift.Detect(snapshot, states)

	observability.SetDriftEntries("stale", len(report.Stale))
	observability.SetDriftEntries("orphaned", len(report.Orphaned))
	observability.SetDriftEntries("new", len(report.New))

	s.logger.Info().
		Int("unchanged", report.UnchangedCount).
		Int("stale", len(report.Stale)).
		Int("orphaned", len(report.Orphaned)).
		Int("new", len(report.New)).
		Int("rename_candidates", len(report.Renames)).
		Msg("Drift detection finished")

	return &report, nil
}

// CoverageReport summarizes how much of the resolved source set is indexed
// with current content
type CoverageReport struct {
	TotalFiles int      `json:"total_files"`
	Indexed    int      `json:"indexed"`
	Missing    []string `json:"missing,omitempty"`
	Stale      []string `json:"stale,omitempty"`
	Percent    float64  `json:"percent"`
}

// Coverage reports which resolved files are indexed with a matching hash
func (s *Syncer) Coverage(ctx context.Context) (*CoverageReport, error) {
	snapshot, err := s.checksums.Load()
	if err != nil {
		return nil, err
	}

	states, _, err := s.currentFileStates()
	if err != nil {
		return nil, err
	}

	report := &CoverageReport{TotalFiles: len(states)}
	for _, fs := range states {
		entry, ok := snapshot[checksum.Key(fs.Path, fs.Collection)]
		switch {
		case !ok:
			report.Missing = append(report.Missing, fs.Path)
		case entry.Hash != fs.Hash:
			report.Stale = append(report.Stale, fs.Path)
		default:
			report.Indexed++
		}
	}
	sort.Strings(report.Missing)
	sort.Strings(report.Stale)
	if report.TotalFiles > 0 {
		report.Percent = float64(report.Indexed) / float64(report.TotalFiles) * 100
	} else {
		report.Percent = 100
	}

	return report, nil
}

// currentFileStates resolves sources and hashes every match. Unreadable
// files are skipped with a log line so one bad file cannot block a report.
func (s *Syncer) currentFileStates() ([]drift.FileState, []sources.File, error) {
	res, err := s.resolver.Resolve(s.cfg.Sources)
	if err != nil {
		return nil, nil, err
	}

	states := make([]drift.FileState, 0, len(res.Files))
	for _, f := range res.Files {
		hash, err := checksum.HashFile(f.AbsPath)
		if err != nil {
			s.logger.Warn().Err(err).Str("file", f.RelPath).Msg("Skipping unreadable file")
			continue
		}
		states = append(states, drift.FileState{
			Path:       f.RelPath,
			Collection: f.Collection,
			Hash:       hash,
		})
	}
	return states, res.Files, nil
}
