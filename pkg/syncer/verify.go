package syncer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harun/memsync/internal/observability"
	"github.com/harun/memsync/pkg/remote"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// VerificationResult reports one read-after-write check
type VerificationResult struct {
	Passed           bool
	Collection       string
	CollectionExists bool
	ContentConfirmed bool
	Elapsed          time.Duration
	Err              error
}

// Verifier confirms pushed content is actually retrievable. The collection
// existence check is cheap; the marker search is the stronger check that
// catches pushes the remote accepted but silently dropped.
type Verifier struct {
	graph  remote.GraphStore
	logger zerolog.Logger
}

// NewVerifier creates a verifier over the given graph store
func NewVerifier(graph remote.GraphStore, logger zerolog.Logger) *Verifier {
	return &Verifier{
		graph:  graph,
		logger: logger.With().Str("component", "verifier").Logger(),
	}
}

// NewMarker returns a unique token to embed in pushed content so a scoped
// search can later prove that exact push landed
func NewMarker() string {
	id, err := gonanoid.New()
	if err != nil {
		return fmt.Sprintf("memsync-marker-%d", time.Now().UnixNano())
	}
	return "memsync-marker-" + id
}

// VerifyRoundTrip pushes a marker document into collection, waits for
// processing, then confirms the marker is retrievable through search. It
// exercises the full push path rather than just connectivity.
func (s *Syncer) VerifyRoundTrip(ctx context.Context, collection string) VerificationResult {
	marker := NewMarker()
	content := fmt.Sprintf("Sync verification marker: %s", marker)
	start := time.Now()

	if err := s.graph.AddContent(ctx, []string{content}, collection, remote.AddOptions{}); err != nil {
		return VerificationResult{
			Collection: collection,
			Err:        fmt.Errorf("marker push failed: %w", err),
			Elapsed:    time.Since(start),
		}
	}
	if err := s.graph.StartProcessing(ctx, []string{collection}, true, s.cfg.Sync.PollTimeoutDuration()); err != nil {
		return VerificationResult{
			Collection: collection,
			Err:        fmt.Errorf("marker processing failed: %w", err),
			Elapsed:    time.Since(start),
		}
	}

	result := s.verifier.Verify(ctx, collection, marker)
	result.Elapsed = time.Since(start)
	return result
}

// Verify checks that collection exists remotely and, when marker is
// non-empty, that a scoped search returns content containing it.
func (v *Verifier) Verify(ctx context.Context, collection, marker string) VerificationResult {
	start := time.Now()
	result := VerificationResult{Collection: collection}

	cols, err := v.graph.ListCollections(ctx)
	if err != nil {
		result.Err = fmt.Errorf("failed to list collections: %w", err)
		result.Elapsed = time.Since(start)
		observability.RecordVerification(result.Elapsed, false)
		return result
	}
	for _, c := range cols {
		if c.Name == collection {
			result.CollectionExists = true
			break
		}
	}
	if !result.CollectionExists {
		result.Err = fmt.Errorf("collection %q not visible after push", collection)
		result.Elapsed = time.Since(start)
		observability.RecordVerification(result.Elapsed, false)
		return result
	}

	if marker == "" {
		result.Passed = true
		result.Elapsed = time.Since(start)
		observability.RecordVerification(result.Elapsed, true)
		return result
	}

	items, err := v.graph.Search(ctx, marker, remote.SearchOptions{
		SearchType:  "CHUNKS",
		TopK:        5,
		Collections: []string{collection},
	})
	if err != nil {
		result.Err = fmt.Errorf("marker search failed: %w", err)
		result.Elapsed = time.Since(start)
		observability.RecordVerification(result.Elapsed, false)
		return result
	}
	for _, item := range items {
		if strings.Contains(item.Content, marker) {
			result.ContentConfirmed = true
			break
		}
	}

	result.Passed = result.ContentConfirmed
	if !result.Passed {
		result.Err = fmt.Errorf("marker %q not retrievable from collection %q", marker, collection)
	}
	result.Elapsed = time.Since(start)
	observability.RecordVerification(result.Elapsed, result.Passed)

	v.logger.Debug().
		Str("collection", collection).
		Bool("passed", result.Passed).
		Dur("elapsed", result.Elapsed).
		Msg("Verification finished")

	return result
}
