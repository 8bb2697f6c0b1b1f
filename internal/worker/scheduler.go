package worker

import (
	"context"
	"log"
	"sync"
	"time"
)

// JobScheduler runs one named task on a fixed interval. The monitoring
// service uses it for the periodic batch scan.
type JobScheduler struct {
	Name     string
	Interval time.Duration
	Task     Job
}

func NewJobScheduler(name string, interval time.Duration, task Job) *JobScheduler {
	return &JobScheduler{
		Name:     name,
		Interval: interval,
		Task:     task,
	}
}

func (s *JobScheduler) Run(ctx context.Context, managerWg *sync.WaitGroup) {
	defer managerWg.Done()

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	log.Printf("[Scheduler %s] Running with interval %s.\n", s.Name, s.Interval)

	for {
		select {
		case <-ticker.C:
			log.Printf("[Scheduler %s] Ticker fired. Running task.\n", s.Name)
			if err := s.Task(ctx); err != nil {
				log.Printf("[Scheduler %s] Task failed: %v\n", s.Name, err)
			}

		case <-ctx.Done():
			// The manager signaled a global shutdown
			log.Printf("[Scheduler %s] Shutting down.\n", s.Name)
			return
		}
	}
}
