package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// Config controls when the sweeps fire.
type Config struct {
	ReminderHour int    // wall-clock hour (0-23) for the daily reminder sweep
	Timezone     string // IANA timezone name; local time when empty
}

// Scheduler owns the cron entries that drive the three sweeps. It is a
// single-process scheduler: running more than one instance against the same
// store duplicates notification emission.
type Scheduler struct {
	sweeper *Sweeper
	cfg     Config
	c       *cron.Cron
}

// NewScheduler creates a stopped scheduler around the given sweeper.
func NewScheduler(sweeper *Sweeper, cfg Config) *Scheduler {
	return &Scheduler{sweeper: sweeper, cfg: cfg}
}

// Start registers the sweep entries and starts the cron loop. The reminder
// sweep fires daily at the configured hour, overdue detection hourly, and
// notification cleanup weekly. Entries skip a firing while the previous run
// of the same sweep is still in flight.
func (s *Scheduler) Start() error {
	if s.c != nil {
		return nil
	}
	loc := time.Local
	if s.cfg.Timezone != "" {
		parsed, err := time.LoadLocation(s.cfg.Timezone)
		if err != nil {
			return fmt.Errorf("invalid timezone %q: %w", s.cfg.Timezone, err)
		}
		loc = parsed
	}
	hour := s.cfg.ReminderHour
	if hour < 0 || hour > 23 {
		hour = 8
	}

	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	entries := []struct {
		name string
		spec string
		run  func(context.Context) (int, error)
	}{
		{"reminder", fmt.Sprintf("0 %d * * *", hour), s.sweeper.RunReminderSweep},
		{"overdue", "0 * * * *", s.sweeper.RunOverdueSweep},
		{"cleanup", "0 0 * * 0", s.sweeper.RunCleanupSweep},
	}
	for _, entry := range entries {
		entry := entry
		if _, err := c.AddFunc(entry.spec, func() {
			count, err := entry.run(context.Background())
			if err != nil {
				log.WithError(err).WithField("sweep", entry.name).Error("sweep failed")
				return
			}
			log.WithFields(log.Fields{"sweep": entry.name, "affected": count}).Info("sweep completed")
		}); err != nil {
			return fmt.Errorf("failed to register %s sweep: %w", entry.name, err)
		}
	}

	c.Start()
	s.c = c
	log.WithFields(log.Fields{
		"reminder_hour": hour,
		"timezone":      loc.String(),
	}).Info("sweep scheduler started")
	return nil
}

// Stop halts scheduling and waits for any in-flight sweep to finish.
func (s *Scheduler) Stop() {
	if s.c == nil {
		return
	}
	ctx := s.c.Stop()
	<-ctx.Done()
	s.c = nil
	log.Info("sweep scheduler stopped")
}
