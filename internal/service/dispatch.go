package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
)

// Dispatcher runs detached background work. The admitting request hands a
// task over and returns immediately; the task runs on a worker goroutine and
// its completion callback fires when it finishes, however long that takes.
type Dispatcher struct {
	tasks     chan dispatchTask
	wg        sync.WaitGroup
	errLogger *log.Logger

	mu     sync.Mutex
	closed bool
}

type dispatchTask struct {
	name string
	fn   func(ctx context.Context) error
	done func(err error)
}

// NewDispatcher creates a dispatcher with the given worker count and queue
// size and starts its workers.
func NewDispatcher(workers, queueSize int) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	d := &Dispatcher{
		tasks:     make(chan dispatchTask, queueSize),
		errLogger: log.New(os.Stderr, "ERROR: ", log.LstdFlags),
	}

	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}

	return d
}

// Dispatch enqueues a task. It never blocks: a full queue is a dispatch
// failure the caller must handle, not a wait.
func (d *Dispatcher) Dispatch(name string, fn func(ctx context.Context) error, done func(err error)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return fmt.Errorf("dispatcher is stopped")
	}

	select {
	case d.tasks <- dispatchTask{name: name, fn: fn, done: done}:
		return nil
	default:
		return fmt.Errorf("dispatch queue is full")
	}
}

// Stop closes the queue and waits for in-flight tasks to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.tasks)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for task := range d.tasks {
		err := d.runTask(task)
		if task.done != nil {
			task.done(err)
		}
	}
}

// runTask executes one task, converting a panic into an error so a bad task
// cannot take the worker down.
func (d *Dispatcher) runTask(task dispatchTask) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("task %s panicked: %v", task.name, rec)
			d.errLogger.Printf("Task %s panicked: %v", task.name, rec)
		}
	}()

	// Detached from any request context: abandoning the HTTP connection
	// that admitted the work does not stop it.
	return task.fn(context.Background())
}
