// Package cron schedules the assistant's periodic maintenance work on
// top of robfig/cron.
package cron

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
)

// Job is one scheduled maintenance task.
type Job struct {
	Name string
	Spec string // cron expression or @-descriptor, e.g. "@hourly"
	Run  func(ctx context.Context) error
}

// Service runs registered jobs on their schedules. Jobs are registered
// before Start; job failures are logged and never stop the schedule.
type Service struct {
	mu      sync.Mutex
	jobs    []Job
	cron    *rcron.Cron
	cancel  context.CancelFunc
	started bool
}

func NewService() *Service {
	return &Service{}
}

// AddJob registers a job. Returns an error after Start.
func (s *Service) AddJob(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("add job %s: service already started", job.Name)
	}
	if job.Run == nil {
		return fmt.Errorf("add job %s: nil run func", job.Name)
	}
	s.jobs = append(s.jobs, job)
	return nil
}

// Start validates every schedule, registers the jobs, and begins
// running them. The ctx bounds all job executions; cancelling it stops
// the service.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("cron service already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.cron = rcron.New()

	for _, job := range s.jobs {
		job := job
		if _, err := s.cron.AddFunc(job.Spec, func() {
			log.Printf("[cron] executing job %s", job.Name)
			if err := job.Run(runCtx); err != nil {
				log.Printf("[cron] job %s error: %v", job.Name, err)
			}
		}); err != nil {
			cancel()
			return fmt.Errorf("register job %s (%s): %w", job.Name, job.Spec, err)
		}
	}

	s.cron.Start()
	s.started = true
	log.Printf("[cron] started with %d jobs", len(s.jobs))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop cancels running jobs and waits briefly for them to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel := s.cancel
	c := s.cron
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c != nil {
		stopCtx := c.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(5 * time.Second):
			log.Printf("[cron] stop timeout waiting for running jobs")
		}
	}
	log.Printf("[cron] stopped")
}
