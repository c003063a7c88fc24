// Package scheduler runs background jobs on cron schedules.
package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/domain"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// ErrAlreadyRunning is returned by RunNow while the job is still running.
var ErrAlreadyRunning = errors.New("job already running")

// Schedules accept an optional leading seconds field and descriptors such
// as "@hourly" or "@every 10m".
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateSchedule reports whether spec is a schedule AddJob accepts.
func ValidateSchedule(spec string) error {
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("%w: schedule %q: %v", domain.ErrInvalidParameter, spec, err)
	}
	return nil
}

// Scheduler manages background jobs. A job never overlaps itself: a tick
// that fires while the previous run is still going is skipped.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
	running map[string]*atomic.Bool
}

// New creates a new scheduler
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithParser(parser)),
		log:     log.With().Str("component", "scheduler").Logger(),
		entries: make(map[string]cron.EntryID),
		running: make(map[string]*atomic.Bool),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a new job with cron schedule. Job names are unique.
// Schedule examples:
//   - "0 */5 * * * *"      - Every 5 minutes
//   - "@hourly"            - Every hour
//   - "0 18 * * MON-FRI"   - 6 PM weekdays, after the close
//   - "@every 30s"         - Every 30 seconds
func (s *Scheduler) AddJob(schedule string, job Job) error {
	if err := ValidateSchedule(schedule); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, ok := s.entries[name]; ok {
		return fmt.Errorf("%w: job %q already registered", domain.ErrInvalidParameter, name)
	}

	running := &atomic.Bool{}
	id, err := s.cron.AddFunc(schedule, func() {
		if !running.CompareAndSwap(false, true) {
			s.log.Warn().Str("job", name).Msg("Previous run still in progress, skipping")
			return
		}
		defer running.Store(false)
		s.run(job)
	})
	if err != nil {
		return err
	}
	s.entries[name] = id
	s.running[name] = running

	s.log.Info().
		Str("schedule", schedule).
		Str("job", name).
		Time("next", s.cron.Entry(id).Schedule.Next(time.Now())).
		Msg("Job registered")

	return nil
}

// Next returns when the named job fires next. It is false for unknown jobs.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}

	entry := s.cron.Entry(id)
	if !entry.Next.IsZero() {
		return entry.Next, true
	}
	// Not started yet.
	return entry.Schedule.Next(time.Now()), true
}

// RunNow executes a job immediately (outside schedule). A registered job
// that is already running is not started twice.
func (s *Scheduler) RunNow(job Job) error {
	s.mu.Lock()
	running := s.running[job.Name()]
	s.mu.Unlock()

	if running != nil {
		if !running.CompareAndSwap(false, true) {
			return fmt.Errorf("%w: %s", ErrAlreadyRunning, job.Name())
		}
		defer running.Store(false)
	}

	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	return job.Run()
}

func (s *Scheduler) run(job Job) {
	s.log.Debug().Str("job", job.Name()).Msg("Running job")

	start := time.Now()
	if err := job.Run(); err != nil {
		s.log.Error().
			Err(err).
			Str("job", job.Name()).
			Dur("duration", time.Since(start)).
			Msg("Job failed")
		return
	}
	s.log.Debug().Str("job", job.Name()).Dur("duration", time.Since(start)).Msg("Job completed")
}
