package worker

import (
	"sync"

	"github.com/hbomb79/Reel/pkg/logger"
)

var workerLogger = logger.Get("Worker")

type (
	WorkerWakeupChan chan int
	WorkerStatus     int

	// WorkerTask is the function a worker executes repeatedly. It should
	// return true if it performed work (in which case it will be called
	// again immediately), or false if there was no work available (in which
	// case the worker will sleep until woken). An error stops the worker.
	WorkerTask func(Worker) (bool, error)

	Worker interface {
		Start()
		Status() WorkerStatus
		WakeupChan() WorkerWakeupChan
		Label() string
		Close()
	}

	taskWorker struct {
		*sync.Mutex
		label         string
		task          WorkerTask
		wakeupChan    WorkerWakeupChan
		currentStatus WorkerStatus
	}
)

const (
	Sleeping WorkerStatus = iota
	Working
	Finished
)

func NewWorker(label string, task WorkerTask) *taskWorker {
	return &taskWorker{
		Mutex:         &sync.Mutex{},
		label:         label,
		task:          task,
		wakeupChan:    make(WorkerWakeupChan, 1),
		currentStatus: Sleeping,
	}
}

// Start runs the workers task until there is no more work, at which point
// the worker sleeps until woken up. Start returns once the wakeup channel
// is closed, or the task returns an error.
func (worker *taskWorker) Start() {
	workerLogger.Emit(logger.NEW, "Starting worker with label %v\n", worker.label)
	worker.setStatus(Working)
	defer func() {
		worker.setStatus(Finished)
		workerLogger.Emit(logger.STOP, "Worker with label %v has stopped\n", worker.label)
	}()

	for {
		workDone, err := worker.task(worker)
		if err != nil {
			workerLogger.Emit(logger.ERROR, "Worker with label %v has reported an error(%T): %v\n", worker.label, err, err.Error())
			return
		}

		if !workDone && !worker.sleep() {
			return
		}
	}
}

// Status returns the current status of this worker
func (worker *taskWorker) Status() WorkerStatus {
	worker.Lock()
	defer worker.Unlock()

	return worker.currentStatus
}

func (worker *taskWorker) WakeupChan() WorkerWakeupChan {
	return worker.wakeupChan
}

// Close closes the Worker by closing the WakeChan.
// Note that this does not interrupt currently running
// goroutines.
func (worker *taskWorker) Close() {
	close(worker.wakeupChan)
}

// Label returns the label for this worker
func (worker *taskWorker) Label() string {
	return worker.label
}

// sleep puts a worker to sleep until it's wakeupChan is
// signalled from another goroutine. The channel holds a single pending
// wakeup, so a signal sent while the worker was still running its task
// causes the worker to run the task again rather than sleep. Returns a boolean that
// is 'false' if the wakeup channel was closed - indicating
// the worker should quit.
func (worker *taskWorker) sleep() (isAlive bool) {
	worker.setStatus(Sleeping)

	if _, isAlive = <-worker.wakeupChan; isAlive {
		worker.setStatus(Working)
	} else {
		workerLogger.Emit(logger.STOP, "Wakeup channel for worker '%v' has been closed - worker is exiting\n", worker.label)
	}

	return isAlive
}

func (worker *taskWorker) setStatus(status WorkerStatus) {
	worker.Lock()
	defer worker.Unlock()

	worker.currentStatus = status
}
