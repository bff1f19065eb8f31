package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
)

type WorkingPool struct {
	name       string
	NumWorkers int
	jobChan    chan Job
	stopped    chan struct{}
	stopOnce   sync.Once
}

func NewWorkingPool(name string, numWorkers int, queueSize int) *WorkingPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &WorkingPool{
		name:       name,
		NumWorkers: numWorkers,
		jobChan:    make(chan Job, queueSize),
		stopped:    make(chan struct{}),
	}
}

func (p *WorkingPool) GetName() string {
	return p.name
}

// SubmitJob queues a job, waiting for queue space until ctx is done. The job
// channel is never closed, so submitting after shutdown fails instead of panicking.
func (p *WorkingPool) SubmitJob(ctx context.Context, job Job) error {
	select {
	case <-p.stopped:
		return ErrPoolStopped
	default:
	}

	select {
	case p.jobChan <- job:
		return nil
	case <-p.stopped:
		return ErrPoolStopped
	case <-ctx.Done():
		return fmt.Errorf("submit to pool %s: %w", p.name, ctx.Err())
	}
}

func (p *WorkingPool) TrySubmitJob(job Job) error {
	select {
	case <-p.stopped:
		return ErrPoolStopped
	default:
	}

	select {
	case p.jobChan <- job:
		return nil
	default:
		return fmt.Errorf("submit to pool %s: %w", p.name, ErrQueueFull)
	}
}

func (p *WorkingPool) Start(ctx context.Context, managerWg *sync.WaitGroup) {
	defer managerWg.Done()

	var workerWg sync.WaitGroup

	for i := range p.NumWorkers {
		workerWg.Add(1)
		go p.worker(ctx, &workerWg, i+1)
	}

	<-ctx.Done()

	log.Printf("[WorkingPool %s] Shutdown signaled.", p.name)
	p.stopOnce.Do(func() { close(p.stopped) })

	// Wait for all workers to finish their current job and exit
	workerWg.Wait()
	log.Printf("[WorkingPool %s] All workers stopped.", p.name)
}

// worker is the internal goroutine for a single worker
func (p *WorkingPool) worker(ctx context.Context, wg *sync.WaitGroup, id int) {
	defer wg.Done()

	for {
		select {
		case job := <-p.jobChan:
			p.safeExecution(job, id, ctx)

		case <-ctx.Done():
			log.Printf("[WorkingPool %s-Worker %d] Context canceled. Exiting.", p.name, id)
			return
		}
	}
}

func (p *WorkingPool) safeExecution(job Job, workerID int, ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[WorkingPool %s-Worker %d] FATAL: Panic recovered in job: %v", p.name, workerID, r)
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()

	err = job(ctx)
	if err != nil {
		log.Printf("[WorkingPool %s-Worker %d] Error executing job: %s.", p.name, workerID, err)
	}
	return err
}
