package task

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the current state of a task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// TaskTypeImport identifies collection import jobs.
const TaskTypeImport = "anki_import"

// Finished reports whether s is a terminal status.
func (s TaskStatus) Finished() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Task represents a unit of background work to be processed
type Task interface {
	// ID returns the task's unique identifier
	ID() uuid.UUID

	// OwnerID returns the user the task runs on behalf of
	OwnerID() uuid.UUID

	// Type returns the task type identifier
	Type() string

	// Status returns the current task status
	Status() TaskStatus

	// Execute runs the task logic
	Execute(ctx context.Context) error

	// Result returns the task's JSON-encoded result, or nil when it has none.
	// It is read after Execute returns, whether or not Execute failed.
	Result() json.RawMessage
}

// Categorizer is implemented by tasks that classify their failures into
// user-facing categories.
type Categorizer interface {
	ErrorCategory(err error) string
}

// TaskQueueReader provides read-only access to the task channel
// allowing workers to consume tasks without the ability to enqueue
type TaskQueueReader interface {
	// GetChannel returns a read-only channel for consuming tasks
	GetChannel() <-chan Task
}

// TaskQueueWriter provides write access to the task queue
// allowing services to enqueue tasks for processing
type TaskQueueWriter interface {
	// Enqueue adds a task to the queue for processing
	// Returns an error if the queue is full or closed
	Enqueue(task Task) error

	// Close closes the task queue, preventing further task submission
	Close()
}

// Outcome is what a status transition records alongside the new status.
type Outcome struct {
	Result        json.RawMessage
	ErrorCategory string
	ErrorMessage  string
}

// Record is the persisted view of a task.
type Record struct {
	ID            uuid.UUID       `json:"id"`
	OwnerID       uuid.UUID       `json:"owner_id"`
	Status        TaskStatus      `json:"status"`
	Result        json.RawMessage `json:"result,omitempty"`
	ErrorCategory string          `json:"error_category,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TaskStore defines the interface for persisting tasks
type TaskStore interface {
	// SaveTask persists a new task
	SaveTask(ctx context.Context, task Task) error

	// UpdateTaskStatus moves a task to status and records the outcome.
	UpdateTaskStatus(ctx context.Context, taskID uuid.UUID, status TaskStatus, outcome Outcome) error

	// GetTask retrieves a task record. Missing tasks yield an error wrapping
	// store.ErrNotFound.
	GetTask(ctx context.Context, taskID uuid.UUID) (*Record, error)

	// FailStaleTasks marks unfinished tasks as failed with reason and returns
	// how many were changed. A zero olderThan matches every unfinished task;
	// otherwise only tasks untouched for longer than olderThan.
	FailStaleTasks(ctx context.Context, olderThan time.Duration, reason string) (int, error)
}
