package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

type Logger interface {
	Infof(template string, args ...interface{})
	Errorf(template string, args ...interface{})
}

// Scheduler runs keyed jobs on cron schedules. Scheduling a key again
// replaces its previous entry.
type Scheduler struct {
	cron    *cron.Cron
	logger  Logger
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	entries map[string]cron.EntryID
}

func New(logger Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]cron.EntryID),
	}
}

// AddJob schedules job under key using a standard five-field spec or a
// @descriptor.
func (s *Scheduler) AddJob(key, spec string, job func(context.Context) error) error {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return err
	}
	s.Schedule(key, sched, job)
	return nil
}

// Schedule registers job under key. A schedule whose Next returns the zero
// time never fires.
func (s *Scheduler) Schedule(key string, sched cron.Schedule, job func(context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[key]; ok {
		s.cron.Remove(id)
	}
	s.entries[key] = s.cron.Schedule(sched, cron.FuncJob(func() {
		if err := job(s.ctx); err != nil {
			s.logger.Errorf("[%s] Scheduled run failed: %v", key, err)
		}
	}))
}

func (s *Scheduler) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[key]; ok {
		s.cron.Remove(id)
		delete(s.entries, key)
	}
}

// Next reports when key fires next. It is only known once the scheduler
// has started.
func (s *Scheduler) Next(key string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.entries[key]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	next := s.cron.Entry(id).Next
	return next, !next.IsZero()
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Infof("Scheduler started with %d job(s)", s.Len())
}

// Stop cancels the context handed to running jobs and waits for them.
func (s *Scheduler) Stop() {
	s.cancel()
	ctx := s.cron.Stop()
	<-ctx.Done()
}
