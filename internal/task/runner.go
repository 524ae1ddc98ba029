package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/scry-decks/internal/redact"
)

// Reasons recorded on tasks the runner gives up on.
const (
	reasonInterrupted = "interrupted by a server restart; please upload the archive again"
	reasonStuck       = "timed out while processing"
	reasonQueueFull   = "the import queue is full; please try again later"
)

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int

	// StuckTaskAge defines how long a task can stay unfinished before it is
	// considered stuck and failed
	StuckTaskAge time.Duration

	// StuckTaskCheckInterval defines how often to check for stuck tasks
	// If zero, defaults to 5 minutes
	StuckTaskCheckInterval time.Duration
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount:            2,
		QueueSize:              100,
		StuckTaskAge:           30 * time.Minute,
		StuckTaskCheckInterval: 5 * time.Minute,
	}
}

// TaskRunner manages background task processing. Task payloads live only in
// memory, so tasks left unfinished by a previous process are failed on Start
// rather than resumed.
type TaskRunner struct {
	store      TaskStore
	queue      *TaskQueue
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopOnce   sync.Once
	config     TaskRunnerConfig
	logger     *slog.Logger
	errHandler func(task Task, err error)
}

// NewTaskRunner creates a new TaskRunner
func NewTaskRunner(store TaskStore, config TaskRunnerConfig, logger *slog.Logger) *TaskRunner {
	if store == nil {
		panic("store cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	if config.StuckTaskCheckInterval <= 0 {
		config.StuckTaskCheckInterval = 5 * time.Minute
	}

	logger = logger.With(slog.String("component", "task_runner"))
	ctx, cancel := context.WithCancel(context.Background())

	return &TaskRunner{
		store:      store,
		queue:      NewTaskQueue(config.QueueSize, logger),
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     logger,
		errHandler: func(task Task, err error) {
			logger.Error("task execution failed",
				slog.String("task_id", task.ID().String()),
				slog.String("task_type", task.Type()),
				slog.String("error", err.Error()))
		},
	}
}

// SetErrorHandler allows setting a custom error handler function
func (r *TaskRunner) SetErrorHandler(handler func(task Task, err error)) {
	r.errHandler = handler
}

// Submit persists a task and adds it to the queue. When the queue is full the
// task is recorded as failed and an error wrapping ErrQueueFull is returned.
func (r *TaskRunner) Submit(ctx context.Context, task Task) error {
	if err := r.store.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	if err := r.queue.Enqueue(task); err != nil {
		outcome := Outcome{ErrorMessage: reasonQueueFull}
		if errors.Is(err, ErrQueueClosed) {
			outcome.ErrorMessage = "the server is shutting down"
		}
		if updateErr := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusFailed, outcome); updateErr != nil {
			r.logger.Error("failed to record rejected task",
				slog.String("task_id", task.ID().String()),
				slog.String("error", updateErr.Error()))
		}
		return err
	}
	return nil
}

// Start recovers state left by a previous run and begins processing tasks.
func (r *TaskRunner) Start() error {
	if err := r.Recover(); err != nil {
		return fmt.Errorf("failed to recover tasks: %w", err)
	}

	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	if r.config.StuckTaskAge > 0 {
		r.wg.Add(1)
		go r.stuckTaskMonitor()
	}

	return nil
}

// Stop cancels running tasks, waits for workers to exit and closes the queue.
// It is safe to call more than once.
func (r *TaskRunner) Stop() {
	r.stopOnce.Do(func() {
		r.cancelFunc()
		r.wg.Wait()
		r.queue.Close()
	})
}

// Recover fails every task a previous process left unfinished.
func (r *TaskRunner) Recover() error {
	n, err := r.store.FailStaleTasks(r.ctx, 0, reasonInterrupted)
	if err != nil {
		return fmt.Errorf("failed to fail interrupted tasks: %w", err)
	}
	if n > 0 {
		r.logger.Warn("failed tasks interrupted by restart", slog.Int("count", n))
	}
	return nil
}

// worker processes tasks from the queue
func (r *TaskRunner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", slog.Int("worker_id", id))
	tasks := r.queue.GetChannel()

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping worker", slog.Int("worker_id", id))
			return

		case task, ok := <-tasks:
			if !ok {
				r.logger.Debug("task channel closed, stopping worker", slog.Int("worker_id", id))
				return
			}
			r.processTask(task, id)
		}
	}
}

// processTask handles execution of a single task
func (r *TaskRunner) processTask(task Task, workerID int) {
	// Status writes must land even after Stop cancels the run context.
	statusCtx := context.WithoutCancel(r.ctx)
	log := r.logger.With(
		slog.String("task_id", task.ID().String()),
		slog.String("task_type", task.Type()),
		slog.Int("worker_id", workerID),
	)

	if err := r.store.UpdateTaskStatus(statusCtx, task.ID(), TaskStatusProcessing, Outcome{}); err != nil {
		log.Error("failed to update task status to processing", slog.String("error", err.Error()))
		return
	}

	log.Info("processing task")
	started := time.Now()
	err := r.execute(task)

	if err != nil {
		outcome := Outcome{Result: task.Result(), ErrorMessage: redact.Error(err)}
		if c, ok := task.(Categorizer); ok {
			outcome.ErrorCategory = c.ErrorCategory(err)
		}
		if updateErr := r.store.UpdateTaskStatus(statusCtx, task.ID(), TaskStatusFailed, outcome); updateErr != nil {
			log.Error("failed to update task status to failed", slog.String("error", updateErr.Error()))
		}
		r.errHandler(task, err)
		return
	}

	log.Info("task completed successfully", slog.Duration("duration", time.Since(started)))
	if updateErr := r.store.UpdateTaskStatus(statusCtx, task.ID(), TaskStatusCompleted,
		Outcome{Result: task.Result()}); updateErr != nil {
		log.Error("failed to update task status to completed", slog.String("error", updateErr.Error()))
	}
}

// execute runs the task and converts a panic into an error.
func (r *TaskRunner) execute(task Task) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task panicked: %v", p)
		}
	}()
	return task.Execute(r.ctx)
}

// stuckTaskMonitor periodically fails tasks that have stayed unfinished for
// longer than StuckTaskAge
func (r *TaskRunner) stuckTaskMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StuckTaskCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return

		case <-ticker.C:
			n, err := r.store.FailStaleTasks(r.ctx, r.config.StuckTaskAge, reasonStuck)
			if err != nil {
				if r.ctx.Err() == nil {
					r.logger.Error("failed to check for stuck tasks", slog.String("error", err.Error()))
				}
				continue
			}
			if n > 0 {
				r.logger.Warn("failed stuck tasks", slog.Int("count", n))
			}
		}
	}
}
