// Package scheduler fires the named sweeps on calendar triggers.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/chamahub/backend/internal/domain"
	"github.com/robfig/cron/v3"
)

// Job is a no-argument sweep returning a summary count.
type Job func(ctx context.Context) (int, error)

// DefaultSpecs are the standard five-field cron triggers per job.
var DefaultSpecs = map[string]string{
	"reminder_sweep": "0 9 * * 1", // Monday 09:00
	"billing_sweep":  "0 8 1 * *", // 1st of the month 08:00
	"daily_backup":   "0 2 * * *",
	"weekly_reports": "0 18 * * 0", // Sunday 18:00
}

// Config controls triggers. Empty specs fall back to DefaultSpecs; a job
// whose spec is "-" is only runnable on demand.
type Config struct {
	Location *time.Location
	Specs    map[string]string
	LeaseTTL time.Duration
}

type jobState struct {
	fn      Job
	spec    string
	entry   cron.EntryID
	lastRun *time.Time
	count   int
	lastErr string
	running bool
}

// Scheduler owns a cron runner and the registered jobs.
type Scheduler struct {
	cron     *cron.Cron
	locker   Locker
	leaseTTL time.Duration

	mu   sync.Mutex
	jobs map[string]*jobState
}

// New registers jobs with their triggers. It does not start the runner.
func New(jobs map[string]func(context.Context) (int, error), cfg Config, locker Locker) (*Scheduler, error) {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	if locker == nil {
		locker = NoopLocker{}
	}
	ttl := cfg.LeaseTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	s := &Scheduler{
		cron:     cron.New(cron.WithLocation(loc), cron.WithChain(cron.Recover(cronLogger{}))),
		locker:   locker,
		leaseTTL: ttl,
		jobs:     make(map[string]*jobState, len(jobs)),
	}

	for name, fn := range jobs {
		spec := cfg.Specs[name]
		if spec == "" {
			spec = DefaultSpecs[name]
		}
		st := &jobState{fn: fn}
		s.jobs[name] = st
		if spec == "" || spec == "-" {
			continue
		}

		id, err := s.cron.AddFunc(spec, func() {
			if _, err := s.Run(context.Background(), name); err != nil && !domain.IsKind(err, domain.KindAlreadyExists) {
				log.Printf("[Scheduler] %s failed: %v", name, err)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("invalid schedule %q for %s: %w", spec, name, err)
		}
		st.spec = spec
		st.entry = id
	}
	return s, nil
}

// Start begins firing triggers in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, j := range s.Jobs() {
		if j.NextRun != nil {
			log.Printf("[Scheduler] %s (%s) next run %s", j.Name, j.Schedule, j.NextRun.Format(time.RFC1123))
		}
	}
}

// Stop halts the triggers and waits for running jobs until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes the named job now. It fails with NotFound for an unknown
// name and AlreadyExists when the job is already running here or on
// another replica.
func (s *Scheduler) Run(ctx context.Context, name string) (int, error) {
	s.mu.Lock()
	st, ok := s.jobs[name]
	if !ok {
		s.mu.Unlock()
		return 0, domain.ErrNotFound(fmt.Sprintf("unknown job %q", name))
	}
	if st.running {
		s.mu.Unlock()
		return 0, domain.ErrAlreadyExists(fmt.Sprintf("job %s is already running", name))
	}
	st.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		st.running = false
		s.mu.Unlock()
	}()

	release, acquired, err := s.locker.Acquire(ctx, name, s.leaseTTL)
	if err != nil {
		return 0, domain.ErrInternal("failed to acquire job lease", err)
	}
	if !acquired {
		log.Printf("[Scheduler] %s is running on another replica, skipping", name)
		return 0, domain.ErrAlreadyExists(fmt.Sprintf("job %s is running elsewhere", name))
	}
	defer release()

	count, err := st.fn(ctx)

	now := time.Now()
	s.mu.Lock()
	st.lastRun = &now
	st.count = count
	st.lastErr = ""
	if err != nil {
		st.lastErr = err.Error()
	}
	s.mu.Unlock()
	return count, err
}

// Jobs reports every registered job sorted by name.
func (s *Scheduler) Jobs() []domain.JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.JobStatus, 0, len(s.jobs))
	for name, st := range s.jobs {
		js := domain.JobStatus{
			Name:      name,
			Schedule:  st.spec,
			LastRun:   st.lastRun,
			LastCount: st.count,
			LastError: st.lastErr,
			Running:   st.running,
		}
		if st.entry != 0 {
			if next := s.cron.Entry(st.entry).Next; !next.IsZero() {
				js.NextRun = &next
			} else if sched, err := cron.ParseStandard(st.spec); err == nil {
				next := sched.Next(time.Now().In(s.cron.Location()))
				js.NextRun = &next
			}
		}
		out = append(out, js)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Printf("[Scheduler] %s: %v %v", msg, err, keysAndValues)
}
