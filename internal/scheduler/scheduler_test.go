package scheduler

import (
	"testing"
	"time"

	"github.com/nirolabs/niro/internal/store"
)

func TestSchedulerAddJob(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()
	if err := s.AddJob("* * * * *", func() {}); err != nil {
		t.Errorf("Expected no error adding job, got %v", err)
	}
	if err := s.AddJob("not a cron expr", func() {}); err == nil {
		t.Error("Expected error for invalid cron expression")
	}
}

func TestScheduleTransitSweep(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()
	st := store.NewInMemoryStore()

	if err := s.ScheduleTransitSweep(st, 24*time.Hour, ""); err != nil {
		t.Errorf("Expected no error scheduling sweep with default cron, got %v", err)
	}
	if err := s.ScheduleTransitSweep(st, 24*time.Hour, "bad expr"); err == nil {
		t.Error("Expected error for invalid sweep cron expression")
	}
}
