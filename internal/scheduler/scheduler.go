package scheduler

import (
	"fmt"
	"time"

	"botipy/internal/config"

	"github.com/robfig/cron/v3"
)

// Scheduler handles periodic execution of scheduled tasks
type Scheduler struct {
	config *config.Config
	cron   *cron.Cron
}

// NewScheduler creates a new scheduler instance. Jobs registered before
// Start begin running once Start is called.
func NewScheduler(cfg *config.Config) *Scheduler {
	return &Scheduler{
		config: cfg,
		cron:   cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
	}
}

// RegisterFunc runs fn on the given cron spec ("@hourly", "*/5 * * * *", ...).
// Errors from fn are logged, not propagated.
func (s *Scheduler) RegisterFunc(spec, name string, fn func() error) error {
	_, err := s.cron.AddFunc(spec, func() {
		started := time.Now()
		if err := fn(); err != nil {
			s.config.Logger.Errorf("Scheduler: job %s failed: %v", name, err)
			return
		}
		s.config.Logger.Debugf("Scheduler: job %s finished in %s", name, time.Since(started))
	})
	if err != nil {
		return fmt.Errorf("registering job %s: %w", name, err)
	}
	s.config.Logger.Infof("Scheduler: registered job %s (%s)", name, spec)
	return nil
}

// Len reports how many jobs are registered.
func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.config.Logger.Info("Scheduler started!")
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.config.Logger.Info("Scheduler stopped")
}
