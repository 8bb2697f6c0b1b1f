package worker

import (
	"context"
	"errors"
	"log"
	"sync"
)

// Job is one unit of work executed by the pool.
type Job func(ctx context.Context) error

// ErrQueueFull is returned when the job queue cannot take more work.
// Callers fall back to inline execution or requeue later.
var ErrQueueFull = errors.New("worker pool queue is full")

type WorkingPool struct {
	NumWorkers int
	jobChan    chan Job

	mu     sync.Mutex
	closed bool
}

func NewWorkingPool(numWorkers int, queueSize int) *WorkingPool {
	return &WorkingPool{
		NumWorkers: numWorkers,
		jobChan:    make(chan Job, queueSize),
	}
}

// SubmitJob queues a job without blocking. Returns ErrQueueFull when the
// queue is saturated and an error after shutdown.
func (p *WorkingPool) SubmitJob(job func(ctx context.Context) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("worker pool is shut down")
	}

	select {
	case p.jobChan <- Job(job):
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *WorkingPool) Start(ctx context.Context, managerWg *sync.WaitGroup) {
	defer managerWg.Done() // Tell manager we are done

	var workerWg sync.WaitGroup

	// Start all the workers
	for i := range p.NumWorkers {
		workerWg.Add(1)
		go p.worker(ctx, &workerWg, i+1)
	}

	// Wait for the manager to signal shutdown
	<-ctx.Done()

	// Start graceful shutdown
	log.Println("[WorkingPool] Shutdown signaled. Closing job channel.")
	p.mu.Lock()
	p.closed = true
	close(p.jobChan) // Tell workers no more jobs are coming
	p.mu.Unlock()

	// Wait for all workers to finish their current job and exit
	workerWg.Wait()
	log.Println("[WorkingPool] All workers stopped.")
}

// worker is the internal goroutine for a single worker
func (p *WorkingPool) worker(ctx context.Context, wg *sync.WaitGroup, id int) {
	defer wg.Done()
	log.Printf("[WorkingPool-Worker %d] Started and waiting for jobs.\n", id)

	for {
		select {
		case job, ok := <-p.jobChan:
			if !ok {
				log.Printf("[WorkingPool-Worker %d] Job channel closed. Exiting.\n", id)
				return
			}

			// Got a job, execute it
			p.safeExecution(ctx, job, id)

		case <-ctx.Done():
			// Exit IMMEDIATELY, even if the job channel is not closed.
			log.Printf("[WorkingPool-Worker %d] Context canceled. Exiting.\n", id)
			return
		}
	}
}

func (p *WorkingPool) safeExecution(ctx context.Context, job Job, workerID int) error {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[WorkingPool-Worker %d] FATAL: Panic recovered in job: %v\n", workerID, r)
		}
	}()

	err := job(ctx) // Execute the job
	if err != nil {
		log.Printf("[WorkingPool-Worker %d] Error executing job: %s.\n", workerID, err)
	}
	return err
}
