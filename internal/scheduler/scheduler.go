// Package scheduler provides cron-based background jobs for NIRO.
//
// Its one standing job sweeps expired transit cache rows so the store
// stays bounded; the session rows themselves are never swept.
package scheduler

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nirolabs/niro/internal/store"
)

// DefaultSweepCron runs the cache sweep daily at 03:00.
const DefaultSweepCron = "0 3 * * *"

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a cron scheduler.
func NewScheduler() *Scheduler {
	// Standard 5-field cron parser (min, hour, dom, month, dow) with panic recovery.
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob schedules a task using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(expr string, task func()) error {
	_, err := s.cron.AddFunc(expr, task)
	return err
}

// ScheduleTransitSweep registers the daily job deleting transit cache
// rows older than the TTL. A sweep failure only logs; the next run
// retries.
func (s *Scheduler) ScheduleTransitSweep(st store.Store, ttl time.Duration, expr string) error {
	if expr == "" {
		expr = DefaultSweepCron
	}
	return s.AddJob(expr, func() {
		cutoff := time.Now().UTC().Add(-ttl)
		removed, err := st.PurgeTransitsBefore(cutoff)
		if err != nil {
			slog.Error("Scheduler.transitSweep: purge failed", "error", err, "cutoff", cutoff)
			return
		}
		slog.Info("Scheduler.transitSweep: purged expired transit rows", "removed", removed, "cutoff", cutoff)
	})
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
