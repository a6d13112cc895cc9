package jobs

import (
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/robfig/cron/v3"
)

// Scheduler triggers jobs from cron expressions (with a seconds field)
type Scheduler struct {
	runner  *Runner
	cron    *cron.Cron
	entries map[string]cron.EntryID
}

// NewScheduler creates a scheduler for runner
func NewScheduler(runner *Runner) *Scheduler {
	return &Scheduler{
		runner:  runner,
		cron:    cron.New(cron.WithSeconds()),
		entries: make(map[string]cron.EntryID),
	}
}

// Configure adds one entry per job with a non-empty schedule.
// Unknown jobs and invalid expressions are reported together.
func (s *Scheduler) Configure(schedules map[string]string) error {
	known := make(map[string]bool)
	for _, j := range s.runner.Jobs() {
		known[j.Name] = true
	}

	names := make([]string, 0, len(schedules))
	for name := range schedules {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		spec := schedules[name]
		if spec == "" {
			continue
		}
		if !known[name] {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownJob, name))
			continue
		}
		job := name
		id, err := s.cron.AddFunc(spec, func() { s.tick(job) })
		if err != nil {
			errs = append(errs, fmt.Errorf("schedule %s %q: %w", name, spec, err))
			continue
		}
		s.entries[name] = id
		log.Printf("⏰ Scheduled %s: %s", name, spec)
	}
	return errors.Join(errs...)
}

// tick starts a scheduled run; an active run of the same job wins
func (s *Scheduler) tick(job string) {
	if _, err := s.runner.Start(job, TriggerSchedule); err != nil {
		if errors.Is(err, ErrJobRunning) {
			log.Printf("⏭️  Scheduled %s skipped: previous run still active", job)
			return
		}
		log.Printf("❌ Scheduled %s not started: %v", job, err)
	}
}

// Scheduled returns the configured job names
func (s *Scheduler) Scheduled() []string {
	out := make([]string, 0, len(s.entries))
	for name := range s.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Start starts the cron loop
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Printf("✅ Scheduler started (%d jobs)", len(s.entries))
}

// Stop stops the cron loop and waits for running ticks to return
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("🛑 Scheduler stopped")
}
