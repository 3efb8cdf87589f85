package worker

import (
	"errors"
	"sync"
)

// WorkerPool contains a group of workers, and a sync.WaitGroup
// which is automatically controlled by the pool.
type WorkerPool struct {
	*sync.Mutex
	workers []Worker
	wg      sync.WaitGroup
	started bool
}

// NewWorkerPool creates a new WorkerPool struct
// and initialises the 'workers' slice.
func NewWorkerPool() *WorkerPool {
	return &WorkerPool{Mutex: &sync.Mutex{}, workers: make([]Worker, 0)}
}

// Start cycles through all the workers
// currently inside the WorkerPool and creates
// a goroutine for each. The 'Start' method of
// each worker is executed concurrently.
//
// Start does NOT block; use Close to stop the
// workers and wait for them to exit.
func (pool *WorkerPool) Start() error {
	pool.Lock()
	defer pool.Unlock()

	if pool.started {
		return errors.New("cannot start an already started worker pool")
	}

	pool.started = true
	for _, worker := range pool.workers {
		pool.wg.Add(1)
		go func(w Worker) {
			defer pool.wg.Done()
			w.Start()
		}(worker)
	}

	return nil
}

// PushWorker inserts the worker provided in to the worker pool. Workers
// cannot be added to a pool which has already started.
func (pool *WorkerPool) PushWorker(workers ...Worker) error {
	pool.Lock()
	defer pool.Unlock()

	if pool.started {
		return errors.New("cannot push worker to already started worker pool")
	}

	pool.workers = append(pool.workers, workers...)
	return nil
}

// WakeupWorkers signals every worker in the pool. Workers which are busy
// keep the signal pending and re-run their task once the current run
// finishes. A worker with a wakeup already pending is skipped.
func (pool *WorkerPool) WakeupWorkers() error {
	pool.Lock()
	defer pool.Unlock()

	if !pool.started {
		return errors.New("cannot wakeup workers on worker pool that is not started")
	}

	for _, w := range pool.workers {
		select {
		case w.WakeupChan() <- 1:
		default:
		}
	}

	return nil
}

// Close will cycle through all the workers inside this
// worker pool and close their wakeup channels, and then
// waits for every worker to exit.
func (pool *WorkerPool) Close() {
	pool.Lock()
	if !pool.started {
		pool.Unlock()
		return
	}

	for _, w := range pool.workers {
		w.Close()
	}
	pool.started = false
	pool.Unlock()

	pool.wg.Wait()
}
