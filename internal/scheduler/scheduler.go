// Package scheduler runs the aggregation on a cron cadence.
package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/infblueocean/newsriver/internal/logging"
)

// Scheduler triggers a job on a cron schedule. Runs are serialized:
// a tick that fires while the previous run is still going is skipped.
type Scheduler struct {
	cron    *cron.Cron
	running chan struct{}
}

func New() *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		running: make(chan struct{}, 1),
	}
}

// Add registers fn under the cron spec.
func (s *Scheduler) Add(spec string, fn func(context.Context)) error {
	_, err := s.cron.AddFunc(spec, func() {
		select {
		case s.running <- struct{}{}:
		default:
			logging.Warn("Skipping scheduled run, previous still in progress")
			return
		}
		defer func() { <-s.running }()
		fn(context.Background())
	})
	return err
}

// Start begins firing jobs. Returns immediately.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running <- struct{}{}
	<-s.running
}
