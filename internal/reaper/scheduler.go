package reaper

import (
	"context"
	"fmt"

	"github.com/robfig/cron"
	"github.com/rs/zerolog"
)

// Scheduler runs the reaper on a cron schedule.
type Scheduler struct {
	cron   *cron.Cron
	reaper *Reaper
	log    zerolog.Logger
}

// NewScheduler registers r under schedule, e.g. "@hourly".
func NewScheduler(r *Reaper, schedule string, log zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{cron: cron.New(), reaper: r, log: log}
	if err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return nil, fmt.Errorf("NewScheduler: schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) tick() {
	if _, err := s.reaper.Run(context.Background()); err != nil {
		s.log.Error().Err(err).Msg("Reaper pass failed")
	}
}

// Start begins running passes in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts future passes. A pass already running is not interrupted.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
