package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/platform/logger"
	"github.com/phrazzld/scry-decks/internal/store"
	"github.com/phrazzld/scry-decks/internal/task"
)

// PostgresTaskStore implements task.TaskStore over the import_jobs table.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
	now    func() time.Time
}

// NewPostgresTaskStore creates a new PostgresTaskStore
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

var _ task.TaskStore = (*PostgresTaskStore)(nil)

// SaveTask implements task.TaskStore.SaveTask
func (s *PostgresTaskStore) SaveTask(ctx context.Context, t task.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO import_jobs (id, user_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	now := s.now()
	_, err := s.db.ExecContext(ctx, query, t.ID(), t.OwnerID(), string(t.Status()), now, now)
	if err != nil {
		log.Error("failed to save task",
			slog.String("task_id", t.ID().String()),
			slog.String("task_type", t.Type()),
			slog.String("error", err.Error()))
		return store.NewStoreError("import_job", "create", "failed to insert job", MapError(err))
	}
	return nil
}

// UpdateTaskStatus implements task.TaskStore.UpdateTaskStatus
func (s *PostgresTaskStore) UpdateTaskStatus(
	ctx context.Context,
	taskID uuid.UUID,
	status task.TaskStatus,
	outcome task.Outcome,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE import_jobs
		SET status = $1, summary = $2, error_category = $3, error_message = $4, updated_at = $5
		WHERE id = $6
	`
	var summary any
	if len(outcome.Result) > 0 {
		summary = string(outcome.Result)
	}

	result, err := s.db.ExecContext(ctx, query,
		string(status),
		summary,
		outcome.ErrorCategory,
		outcome.ErrorMessage,
		s.now(),
		taskID,
	)
	if err != nil {
		log.Error("failed to update task status",
			slog.String("task_id", taskID.String()),
			slog.String("status", string(status)),
			slog.String("error", err.Error()))
		return store.NewStoreError("import_job", "update", "failed to update job status", MapError(err))
	}

	if err := CheckRowsAffected(result, "import_job"); err != nil {
		log.Warn("no task found with ID to update status", slog.String("task_id", taskID.String()))
		return err
	}
	return nil
}

// GetTask implements task.TaskStore.GetTask
func (s *PostgresTaskStore) GetTask(ctx context.Context, taskID uuid.UUID) (*task.Record, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, user_id, status, summary, error_category, error_message, created_at, updated_at
		FROM import_jobs
		WHERE id = $1
	`
	var (
		rec     task.Record
		status  string
		summary []byte
	)
	err := s.db.QueryRowContext(ctx, query, taskID).Scan(
		&rec.ID,
		&rec.OwnerID,
		&status,
		&summary,
		&rec.ErrorCategory,
		&rec.ErrorMessage,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NewStoreError("import_job", "get", "job not found", store.ErrNotFound)
		}
		log.Error("failed to get task",
			slog.String("task_id", taskID.String()),
			slog.String("error", err.Error()))
		return nil, store.NewStoreError("import_job", "get", "failed to get job", MapError(err))
	}

	rec.Status = task.TaskStatus(status)
	if len(summary) > 0 {
		rec.Result = summary
	}
	return &rec, nil
}

// FailStaleTasks implements task.TaskStore.FailStaleTasks
func (s *PostgresTaskStore) FailStaleTasks(ctx context.Context, olderThan time.Duration, reason string) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	now := s.now()
	query := `
		UPDATE import_jobs
		SET status = 'failed', error_message = $1, updated_at = $2
		WHERE status IN ('pending', 'processing')
	`
	args := []any{reason, now}
	if olderThan > 0 {
		query += ` AND updated_at < $3`
		args = append(args, now.Add(-olderThan))
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to fail stale tasks", slog.String("error", err.Error()))
		return 0, store.NewStoreError("import_job", "update", "failed to fail stale jobs", MapError(err))
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, store.NewStoreError("import_job", "update", "failed to count failed jobs", err)
	}
	return int(n), nil
}
