package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"production-report/internal/config"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Scheduler runs a job once per day at a fixed wall clock time.
// Runs are sequential: a run that overlaps the next slot delays it.
type Scheduler struct {
	hour     int
	minute   int
	timezone *time.Location
	schedule cron.Schedule
	job      Job
	now      func() time.Time
	after    func(d time.Duration) <-chan time.Time
	logger   zerolog.Logger
}

// NewScheduler creates a scheduler firing daily at at ("15:04") in tz.
func NewScheduler(at string, tz *time.Location, job Job, logger zerolog.Logger) (*Scheduler, error) {
	clock, err := time.Parse(config.ClockLayout, at)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule time %q: %w", at, err)
	}
	if job == nil {
		return nil, fmt.Errorf("job is required")
	}
	if tz == nil {
		tz = time.UTC
	}
	schedule, err := dailySchedule(clock.Hour(), clock.Minute(), tz)
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		hour:     clock.Hour(),
		minute:   clock.Minute(),
		timezone: tz,
		schedule: schedule,
		job:      job,
		now:      time.Now,
		after:    time.After,
		logger:   logger.With().Str("component", "scheduler").Logger(),
	}, nil
}

// dailySchedule builds the cron schedule "M H * * *" evaluated in tz.
func dailySchedule(hour, minute int, tz *time.Location) (cron.Schedule, error) {
	schedule, err := cron.ParseStandard(fmt.Sprintf("%d %d * * *", minute, hour))
	if err != nil {
		return nil, fmt.Errorf("invalid daily schedule %02d:%02d: %w", hour, minute, err)
	}
	if spec, ok := schedule.(*cron.SpecSchedule); ok {
		spec.Location = tz
	}
	return schedule, nil
}

// Next returns the first slot strictly after t, in the scheduler's time zone.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t).In(s.timezone)
}

// Start blocks until ctx is canceled, running the job at every slot.
// A failed run is logged and the loop continues.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info().
		Str("at", fmt.Sprintf("%02d:%02d", s.hour, s.minute)).
		Str("timezone", s.timezone.String()).
		Msg("scheduler started")

	for {
		now := s.now()
		next := s.Next(now)
		s.logger.Info().Time("next_run", next).Msg("waiting for next run")

		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduler stopped")
			return
		case <-s.after(next.Sub(now)):
			s.runJob(ctx)
		}
	}
}

func (s *Scheduler) runJob(ctx context.Context) {
	start := time.Now()
	if err := s.job(ctx); err != nil {
		s.logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("scheduled run failed")
		return
	}
	s.logger.Info().Dur("duration", time.Since(start)).Msg("scheduled run completed")
}
