// Package scheduler isolates the engine from the host runtime's timer
// primitives. The core exposes a single integration-pass entry point;
// how often it runs is wired here, and tests simply call the pass
// synchronously.
package scheduler

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler registers periodic jobs. Implementations must not run jobs
// before Start is called.
type Scheduler interface {
	Schedule(spec string, job func()) error
	Start()
	Stop()
}

// CronScheduler runs jobs on cron expressions with a seconds field,
// e.g. "0 */5 * * * *" for every five minutes.
type CronScheduler struct {
	c   *cron.Cron
	log *logrus.Logger
}

func NewCronScheduler(log *logrus.Logger) *CronScheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CronScheduler{
		c:   cron.New(cron.WithSeconds()),
		log: log,
	}
}

func (s *CronScheduler) Schedule(spec string, job func()) error {
	if _, err := s.c.AddFunc(spec, job); err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	s.log.WithField("spec", spec).Info("job scheduled")
	return nil
}

func (s *CronScheduler) Start() { s.c.Start() }

func (s *CronScheduler) Stop() {
	ctx := s.c.Stop()
	<-ctx.Done()
	s.log.Info("scheduler stopped")
}
