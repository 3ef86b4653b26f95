package download

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Task is one queued acquisition request
type Task struct {
	ID          string
	Link        string
	DisplayName string
	ctx         context.Context
	cancel      context.CancelFunc
}

// Result represents the result of a task execution
type Result struct {
	TaskID      string
	Acquisition *Acquisition
	Error       error
}

// Success reports whether the task produced an acquisition
func (r *Result) Success() bool {
	return r.Error == nil
}

// TaskHandler processes one task
type TaskHandler func(ctx context.Context, task *Task) (*Acquisition, error)

// WorkerPool runs acquisition tasks on a bounded number of goroutines
type WorkerPool struct {
	maxWorkers  int
	tasks       chan *Task
	results     chan *Result
	activeTasks sync.Map // map[string]*Task
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	handler     TaskHandler
	logger      *zap.Logger
	mu          sync.RWMutex
	started     bool
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(maxWorkers int, handler TaskHandler, logger *zap.Logger) *WorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WorkerPool{
		maxWorkers: maxWorkers,
		tasks:      make(chan *Task, 1024),
		results:    make(chan *Result, maxWorkers*10),
		handler:    handler,
		logger:     logger,
	}
}

// Start spawns worker goroutines and begins processing tasks
func (wp *WorkerPool) Start(ctx context.Context) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.started {
		return fmt.Errorf("worker pool already started")
	}

	if wp.handler == nil {
		return fmt.Errorf("task handler not set")
	}

	wp.ctx, wp.cancel = context.WithCancel(ctx)

	for i := 0; i < wp.maxWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}

	wp.started = true
	return nil
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	log := wp.logger.With(zap.Int("worker", id))
	log.Debug("worker started")

	for {
		select {
		case <-wp.ctx.Done():
			log.Debug("worker stopping", zap.Error(wp.ctx.Err()))
			return

		case task, ok := <-wp.tasks:
			if !ok {
				log.Debug("worker stopping, task queue closed")
				return
			}
			wp.processTask(task)
		}
	}
}

func (wp *WorkerPool) processTask(task *Task) {
	wp.activeTasks.Store(task.ID, task)
	defer wp.activeTasks.Delete(task.ID)

	if task.ctx == nil {
		task.ctx, task.cancel = context.WithCancel(wp.ctx)
	}
	defer task.cancel()

	acquisition, err := wp.handler(task.ctx, task)

	result := &Result{
		TaskID:      task.ID,
		Acquisition: acquisition,
		Error:       err,
	}

	select {
	case wp.results <- result:
	case <-wp.ctx.Done():
	}
}

// Submit queues a task
func (wp *WorkerPool) Submit(task *Task) error {
	wp.mu.RLock()
	if !wp.started {
		wp.mu.RUnlock()
		return fmt.Errorf("worker pool not started")
	}
	wp.mu.RUnlock()

	task.ctx, task.cancel = context.WithCancel(wp.ctx)

	select {
	case wp.tasks <- task:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	}
}

// Stop cancels running tasks and waits for workers to exit
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if !wp.started {
		wp.mu.Unlock()
		return
	}
	wp.started = false
	wp.mu.Unlock()

	wp.CancelAll()
	wp.cancel()
	close(wp.tasks)
	wp.wg.Wait()
	close(wp.results)
}

// Results returns the results channel
func (wp *WorkerPool) Results() <-chan *Result {
	return wp.results
}

// CancelTask cancels a queued or running task by ID
func (wp *WorkerPool) CancelTask(taskID string) error {
	value, ok := wp.activeTasks.Load(taskID)
	if !ok {
		return fmt.Errorf("task not found: %s", taskID)
	}

	task, ok := value.(*Task)
	if !ok {
		return fmt.Errorf("invalid task type for ID: %s", taskID)
	}

	if task.cancel != nil {
		task.cancel()
	}

	return nil
}

// CancelAll cancels all running tasks
func (wp *WorkerPool) CancelAll() {
	wp.activeTasks.Range(func(key, value interface{}) bool {
		if task, ok := value.(*Task); ok && task.cancel != nil {
			task.cancel()
		}
		return true
	})
}

// ActiveCount returns the number of running tasks
func (wp *WorkerPool) ActiveCount() int {
	count := 0
	wp.activeTasks.Range(func(key, value interface{}) bool {
		count++
		return true
	})
	return count
}

// IsTaskActive checks if a task is currently running
func (wp *WorkerPool) IsTaskActive(taskID string) bool {
	_, ok := wp.activeTasks.Load(taskID)
	return ok
}

// MaxWorkers returns the maximum number of workers
func (wp *WorkerPool) MaxWorkers() int {
	return wp.maxWorkers
}
