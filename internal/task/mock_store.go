package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/store"
)

// MockTaskStore is an in-memory TaskStore for tests.
type MockTaskStore struct {
	mutex   sync.RWMutex
	records map[uuid.UUID]*Record
	now     func() time.Time

	SaveFn         func(ctx context.Context, task Task) error
	UpdateStatusFn func(ctx context.Context, taskID uuid.UUID, status TaskStatus, outcome Outcome) error
}

// NewMockTaskStore creates a new MockTaskStore with default implementations
func NewMockTaskStore() *MockTaskStore {
	s := &MockTaskStore{
		records: make(map[uuid.UUID]*Record),
		now:     func() time.Time { return time.Now().UTC() },
	}
	s.SaveFn = s.save
	s.UpdateStatusFn = s.update
	return s
}

// SetNow replaces the store's clock.
func (s *MockTaskStore) SetNow(now func() time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.now = now
}

func (s *MockTaskStore) save(_ context.Context, task Task) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.records[task.ID()]; exists {
		return store.NewStoreError("import_job", "create", "job already exists", store.ErrDuplicate)
	}
	now := s.now()
	s.records[task.ID()] = &Record{
		ID:        task.ID(),
		OwnerID:   task.OwnerID(),
		Status:    task.Status(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

func (s *MockTaskStore) update(_ context.Context, taskID uuid.UUID, status TaskStatus, outcome Outcome) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	rec, exists := s.records[taskID]
	if !exists {
		return store.NewStoreError("import_job", "update", "job not found", store.ErrNotFound)
	}
	rec.Status = status
	rec.Result = outcome.Result
	rec.ErrorCategory = outcome.ErrorCategory
	rec.ErrorMessage = outcome.ErrorMessage
	rec.UpdatedAt = s.now()
	return nil
}

// SaveTask persists a task to the mock store
func (s *MockTaskStore) SaveTask(ctx context.Context, task Task) error {
	return s.SaveFn(ctx, task)
}

// UpdateTaskStatus updates the status of a task in the mock store
func (s *MockTaskStore) UpdateTaskStatus(ctx context.Context, taskID uuid.UUID, status TaskStatus, outcome Outcome) error {
	return s.UpdateStatusFn(ctx, taskID, status, outcome)
}

// GetTask returns a copy of the stored record.
func (s *MockTaskStore) GetTask(_ context.Context, taskID uuid.UUID) (*Record, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	rec, exists := s.records[taskID]
	if !exists {
		return nil, store.NewStoreError("import_job", "get", fmt.Sprintf("job %s not found", taskID), store.ErrNotFound)
	}
	cp := *rec
	return &cp, nil
}

// FailStaleTasks implements TaskStore.FailStaleTasks
func (s *MockTaskStore) FailStaleTasks(_ context.Context, olderThan time.Duration, reason string) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	n := 0
	for _, rec := range s.records {
		if rec.Status.Finished() {
			continue
		}
		if olderThan > 0 && now.Sub(rec.UpdatedAt) <= olderThan {
			continue
		}
		rec.Status = TaskStatusFailed
		rec.ErrorMessage = reason
		rec.UpdatedAt = now
		n++
	}
	return n, nil
}

// Put stores rec directly, bypassing SaveTask.
func (s *MockTaskStore) Put(rec Record) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	cp := rec
	s.records[rec.ID] = &cp
}
