package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Trigger is one queued sync request. An empty Changed list means a full
// candidate scan.
type Trigger struct {
	Reason  string
	Changed []string
}

// TriggerQueue serializes background sync requests onto a single worker.
// Requests arriving while a run is in flight coalesce into one pending
// trigger, so a burst of filesystem events costs at most one extra run.
// Callers never block; outcomes land in the persisted sync state.
type TriggerQueue struct {
	syncer *Syncer
	logger zerolog.Logger

	mu      sync.Mutex
	pending *Trigger

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTriggerQueue creates and starts the queue worker
func NewTriggerQueue(s *Syncer, logger zerolog.Logger) *TriggerQueue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &TriggerQueue{
		syncer: s,
		logger: logger.With().Str("component", "trigger-queue").Logger(),
		wake:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
	}

	q.wg.Add(1)
	go q.run()

	return q
}

// Enqueue requests a sync. Never blocks; merges with any pending trigger.
func (q *TriggerQueue) Enqueue(reason string, changed []string) {
	q.mu.Lock()
	if q.pending == nil {
		q.pending = &Trigger{Reason: reason, Changed: changed}
	} else {
		q.pending.Reason = reason
		q.pending.Changed = mergeChanged(q.pending.Changed, changed)
	}
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}

	q.logger.Debug().Str("reason", reason).Int("changed", len(changed)).Msg("Sync trigger enqueued")
}

// Pending reports whether a trigger is waiting to run
func (q *TriggerQueue) Pending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending != nil
}

// Close stops the worker after the in-flight run finishes
func (q *TriggerQueue) Close() {
	q.cancel()
	q.wg.Wait()
}

func (q *TriggerQueue) run() {
	defer q.wg.Done()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-q.wake:
		}

		for {
			q.mu.Lock()
			trigger := q.pending
			q.pending = nil
			q.mu.Unlock()

			if trigger == nil {
				break
			}

			start := time.Now()
			summary, err := q.syncer.SyncIncremental(q.ctx, trigger.Changed)
			if err != nil {
				q.logger.Error().Err(err).
					Str("reason", trigger.Reason).
					Msg("Triggered sync failed")
				continue
			}

			q.logger.Info().
				Str("reason", trigger.Reason).
				Str("outcome", string(summary.Outcome)).
				Int("pushed", summary.Pushed).
				Dur("duration", time.Since(start)).
				Msg("Triggered sync finished")
		}
	}
}

// mergeChanged unions two changed lists. An empty list means full scan and
// absorbs the other.
func mergeChanged(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, p := range append(a, b...) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
