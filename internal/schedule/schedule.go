// Package schedule posts retention jobs on cron schedules, next to the
// rollover jobs the watcher posts.
package schedule

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"

	"github.com/raoulx24/logkeeper/internal/logging"
	"github.com/raoulx24/logkeeper/internal/mailbox"
	"github.com/raoulx24/logkeeper/internal/worker"
)

// Scheduler owns one cron instance shared by every target.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID
	log     logging.Sink
	running bool
	now     func() time.Time
}

func New(log logging.Sink) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		entries: make(map[string]cron.EntryID),
		log:     log,
		now:     time.Now,
	}
}

// Add schedules a job for target on spec (standard 5-field cron syntax),
// replacing any earlier schedule of the same target. An empty spec only
// removes the earlier schedule.
func (s *Scheduler) Add(target, spec string, mb *mailbox.Mailbox[worker.Job]) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[target]; ok {
		s.cron.Remove(id)
		delete(s.entries, target)
	}
	if spec == "" {
		return nil
	}

	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return errors.Wrapf(err, "invalid cron schedule %q for target %q", spec, target)
	}
	id := s.cron.Schedule(sched, cron.FuncJob(func() {
		s.log.Debug("scheduled retention pass due", "target", target)
		mb.Put(worker.Job{Reason: worker.ReasonSchedule, At: s.now()})
	}))
	s.entries[target] = id

	s.log.Info("retention schedule set", "target", target, "schedule", spec, "next", sched.Next(s.now()))
	return nil
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.log.Info("retention scheduler stopped")
}

// NextRun returns the next time target is due. Before Start it is
// computed from the schedule.
func (s *Scheduler) NextRun(target string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.entries[target]
	if !ok {
		return time.Time{}, false
	}
	e := s.cron.Entry(id)
	if !e.Valid() {
		return time.Time{}, false
	}
	if e.Next.IsZero() {
		return e.Schedule.Next(s.now()), true
	}
	return e.Next, true
}
