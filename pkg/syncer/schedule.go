package syncer

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler enqueues a sync trigger on a cron cadence. Because the trigger
// queue coalesces, a schedule firing while a run is active costs at most one
// follow-up run.
type Scheduler struct {
	schedule cron.Schedule
	expr     string
	queue    *TriggerQueue
	logger   zerolog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewScheduler parses a five-field cron expression and starts firing on it
func NewScheduler(expr string, queue *TriggerQueue, logger zerolog.Logger) (*Scheduler, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}

	s := &Scheduler{
		schedule: schedule,
		expr:     expr,
		queue:    queue,
		logger:   logger.With().Str("component", "scheduler").Logger(),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	go s.run()

	return s, nil
}

// NextRun returns the next firing time after now
func (s *Scheduler) NextRun(now time.Time) time.Time {
	return s.schedule.Next(now)
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

func (s *Scheduler) run() {
	defer close(s.doneCh)

	for {
		next := s.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-timer.C:
			s.logger.Info().Str("schedule", s.expr).Msg("Scheduled sync firing")
			s.queue.Enqueue("schedule", nil)
		case <-s.stopCh:
			timer.Stop()
			return
		}
	}
}
