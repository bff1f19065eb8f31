package worker

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrPoolStopped = errors.New("worker pool stopped")
	ErrQueueFull   = errors.New("worker pool queue full")
)

type Job func(ctx context.Context) error

type Pool interface {
	Start(ctx context.Context, managerWg *sync.WaitGroup)

	SubmitJob(ctx context.Context, job Job) error

	// TrySubmitJob queues a job only if there is room right now.
	TrySubmitJob(job Job) error

	GetName() string
}
