package worker

import (
	"context"
	"log/slog"
	"sync"
)

type workerManagerCMDType int

const (
	StartPool workerManagerCMDType = iota
	StopPool
	StartScheduler
)

// WorkerManagerCMD is the command struct sent to the manager's loop.
type WorkerManagerCMD struct {
	Type      workerManagerCMDType
	Name      string
	Pool      Pool
	Scheduler *JobScheduler
}

// WorkerManager owns the lifecycle of the claim worker pools and sweep schedulers.
type WorkerManager struct {
	pools   map[string]Pool
	cancels map[string]context.CancelFunc
	wg      *sync.WaitGroup
	mu      sync.RWMutex

	managerContext context.Context
	managerCancel  context.CancelFunc
	cmdChan        chan WorkerManagerCMD
	done           chan struct{}
}

func NewWorkerManager() *WorkerManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerManager{
		wg:             new(sync.WaitGroup),
		managerContext: ctx,
		managerCancel:  cancel,
		pools:          make(map[string]Pool),
		cancels:        make(map[string]context.CancelFunc),
		cmdChan:        make(chan WorkerManagerCMD, 10),
		done:           make(chan struct{}),
	}
}

func (m *WorkerManager) ManagerContext() context.Context {
	return m.managerContext
}

func (m *WorkerManager) Run() {
	slog.Info("worker manager starting")
	defer close(m.done)
	defer slog.Info("worker manager halted")

	for {
		select {
		case cmd := <-m.cmdChan:
			switch cmd.Type {
			case StartPool:
				m.startPool(cmd.Name, cmd.Pool)
			case StopPool:
				m.stop(cmd.Name)
			case StartScheduler:
				m.startScheduler(cmd.Name, cmd.Scheduler)
			}
		case <-m.managerContext.Done():
			slog.Info("worker manager shutdown signal received")
			m.mu.Lock()
			for name, cancel := range m.cancels {
				slog.Info("signaling stop", "name", name)
				cancel()
			}
			m.mu.Unlock()
			return
		}
	}
}

func (m *WorkerManager) startPool(name string, pool Pool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.cancels[name]; exists {
		slog.Warn("pool already running, skipping start", "pool_name", name)
		return
	}
	slog.Info("starting pool", "pool_name", name)
	poolCtx, cancel := context.WithCancel(m.managerContext)
	m.cancels[name] = cancel
	m.pools[name] = pool
	m.wg.Add(1)
	go pool.Start(poolCtx, m.wg)
}

func (m *WorkerManager) startScheduler(name string, scheduler *JobScheduler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.cancels[name]; exists {
		slog.Warn("scheduler already running, skipping start", "scheduler", name)
		return
	}
	schedCtx, cancel := context.WithCancel(m.managerContext)
	m.cancels[name] = cancel
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		scheduler.Run(schedCtx)
	}()
}

func (m *WorkerManager) stop(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cancel, exists := m.cancels[name]
	if !exists {
		slog.Warn("nothing running under name, cannot stop", "name", name)
		return
	}
	slog.Info("stopping", "name", name)
	cancel()
	delete(m.cancels, name)
	delete(m.pools, name)
}

func (m *WorkerManager) send(cmd WorkerManagerCMD) {
	select {
	case m.cmdChan <- cmd:
	case <-m.managerContext.Done():
	}
}

func (m *WorkerManager) StartPool(pool Pool) {
	m.send(WorkerManagerCMD{Type: StartPool, Name: pool.GetName(), Pool: pool})
}

func (m *WorkerManager) StopPool(name string) {
	m.send(WorkerManagerCMD{Type: StopPool, Name: name})
}

func (m *WorkerManager) StartScheduler(scheduler *JobScheduler) {
	m.send(WorkerManagerCMD{Type: StartScheduler, Name: "scheduler:" + scheduler.Name, Scheduler: scheduler})
}

func (m *WorkerManager) GetPool(name string) (Pool, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pool, exists := m.pools[name]
	return pool, exists
}

// Shutdown cancels everything and waits for in-flight jobs to return. Run must have been started.
func (m *WorkerManager) Shutdown() {
	slog.Info("worker manager initiating shutdown")
	m.managerCancel()
	<-m.done
	m.wg.Wait()
	slog.Info("worker manager shutdown complete")
}
