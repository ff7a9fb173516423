package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	morningSpec = "0 0 10 * * *"
	eveningSpec = "0 0 17 * * *"
	jobTimeout  = 30 * time.Minute
)

// Job represents a scheduled job
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler runs jobs on cron specs with a seconds field.
type Scheduler struct {
	cron *cron.Cron

	mu        sync.Mutex
	jobs      map[string]Job
	isRunning bool
}

type Option func(*schedulerOptions)

type schedulerOptions struct {
	location *time.Location
}

// WithLocation evaluates specs in loc instead of the local timezone.
func WithLocation(loc *time.Location) Option {
	return func(o *schedulerOptions) {
		if loc != nil {
			o.location = loc
		}
	}
}

func NewScheduler(opts ...Option) *Scheduler {
	o := schedulerOptions{location: time.Local}
	for _, opt := range opts {
		opt(&o)
	}

	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(o.location),
			cron.WithLogger(cron.VerbosePrintfLogger(log.Default())),
			cron.WithChain(cron.Recover(cron.DefaultLogger)),
		),
		jobs: make(map[string]Job),
	}
}

// AddJob registers job once and triggers it on every spec given.
func (s *Scheduler) AddJob(job Job, specs ...string) error {
	if len(specs) == 0 {
		return fmt.Errorf("job %s has no schedule", job.Name())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}

	var ids []cron.EntryID
	for _, spec := range specs {
		id, err := s.cron.AddFunc(spec, func() { s.run(job) })
		if err != nil {
			for _, added := range ids {
				s.cron.Remove(added)
			}
			return fmt.Errorf("failed to add job %s with spec %q: %w", name, spec, err)
		}
		ids = append(ids, id)
	}

	s.jobs[name] = job
	log.Printf("[scheduler] registered %s on %v", name, specs)
	return nil
}

// AddMorningEveningJob runs job at 10am and 5pm every day.
func (s *Scheduler) AddMorningEveningJob(job Job) error {
	return s.AddJob(job, morningSpec, eveningSpec)
}

func (s *Scheduler) run(job Job) {
	name := job.Name()
	log.Printf("[scheduler] starting job %s", name)
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := job.Run(ctx); err != nil {
		log.Printf("[scheduler] job %s failed: %v", name, err)
		return
	}
	log.Printf("[scheduler] completed job %s in %s", name, time.Since(start).Round(time.Millisecond))
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return
	}
	s.cron.Start()
	s.isRunning = true
	log.Println("[scheduler] started")
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.isRunning = false
	log.Println("[scheduler] stopped")
}

// RunJobNow runs a registered job immediately, outside its schedule.
func (s *Scheduler) RunJobNow(ctx context.Context, name string) error {
	s.mu.Lock()
	job, exists := s.jobs[name]
	s.mu.Unlock()
	if !exists {
		return fmt.Errorf("job %s not registered", name)
	}

	log.Printf("[scheduler] manually running job %s", name)
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	return job.Run(ctx)
}
