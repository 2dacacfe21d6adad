package scheduler

import (
	"context"
	"log"
	"time"
)

// Job is one unit of scheduled billing work.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Scheduler runs the billing job chain once a day at a configured time.
// Consolidation must run before overdue collection, which must run before
// the delinquency sweep, so the jobs run sequentially and a failed job does
// not stop the ones after it.
type Scheduler struct {
	jobs    []Job
	dailyAt string
	logger  *log.Logger
}

// NewScheduler constructs a Scheduler.
func NewScheduler(jobs []Job, dailyAt string, logger *log.Logger) *Scheduler {
	return &Scheduler{jobs: jobs, dailyAt: dailyAt, logger: logger}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || len(s.jobs) == 0 {
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !s.shouldRun(now.UTC()) {
				continue
			}
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) shouldRun(now time.Time) bool {
	hour, minute, err := parseDailyAt(s.dailyAt)
	if err != nil {
		return false
	}
	return now.Hour() == hour && now.Minute() == minute
}

func (s *Scheduler) runOnce(ctx context.Context) {
	for _, job := range s.jobs {
		if job.Run == nil {
			continue
		}
		if err := job.Run(ctx); err != nil && s.logger != nil {
			s.logger.Printf("scheduler: job=%s err=%v", job.Name, err)
		}
	}
}

func parseDailyAt(value string) (int, int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}
