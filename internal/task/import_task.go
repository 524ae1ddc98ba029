package task

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/ankiimport"
)

// Errors returned by NewImportTask.
var (
	ErrNilImporter  = errors.New("importer cannot be nil")
	ErrEmptyOwnerID = errors.New("owner ID cannot be empty")
	ErrEmptyArchive = errors.New("archive cannot be empty")
)

// Importer imports one archive for an owner.
type Importer interface {
	Import(ctx context.Context, ownerID uuid.UUID, archive []byte) (*ankiimport.Summary, error)
}

// ImportTask imports an uploaded collection archive in the background.
type ImportTask struct {
	id       uuid.UUID
	ownerID  uuid.UUID
	importer Importer
	logger   *slog.Logger

	mu      sync.Mutex
	archive []byte
	status  TaskStatus
	summary *ankiimport.Summary
}

var (
	_ Task        = (*ImportTask)(nil)
	_ Categorizer = (*ImportTask)(nil)
)

// NewImportTask creates a pending import task for archive.
func NewImportTask(ownerID uuid.UUID, archive []byte, importer Importer, logger *slog.Logger) (*ImportTask, error) {
	if importer == nil {
		return nil, ErrNilImporter
	}
	if ownerID == uuid.Nil {
		return nil, ErrEmptyOwnerID
	}
	if len(archive) == 0 {
		return nil, ErrEmptyArchive
	}
	if logger == nil {
		logger = slog.Default()
	}

	id := uuid.New()
	return &ImportTask{
		id:       id,
		ownerID:  ownerID,
		importer: importer,
		archive:  archive,
		status:   TaskStatusPending,
		logger: logger.With(
			slog.String("task_type", TaskTypeImport),
			slog.String("task_id", id.String()),
			slog.String("owner_id", ownerID.String())),
	}, nil
}

// ID returns the task's unique identifier
func (t *ImportTask) ID() uuid.UUID { return t.id }

// OwnerID returns the importing user
func (t *ImportTask) OwnerID() uuid.UUID { return t.ownerID }

// Type returns TaskTypeImport
func (t *ImportTask) Type() string { return TaskTypeImport }

// Status returns the current task status
func (t *ImportTask) Status() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *ImportTask) setStatus(s TaskStatus) {
	t.mu.Lock()
	t.status = s
	t.mu.Unlock()
}

// Execute runs the import. The archive is released once the import returns.
func (t *ImportTask) Execute(ctx context.Context) error {
	t.mu.Lock()
	archive := t.archive
	t.mu.Unlock()
	if archive == nil {
		return errors.New("import task already executed")
	}

	t.setStatus(TaskStatusProcessing)
	t.logger.Info("starting import", slog.Int("archive_bytes", len(archive)))

	summary, err := t.importer.Import(ctx, t.ownerID, archive)

	t.mu.Lock()
	t.archive = nil
	t.summary = summary
	t.mu.Unlock()

	if err != nil {
		t.setStatus(TaskStatusFailed)
		t.logger.Warn("import failed",
			slog.String("error", err.Error()),
			slog.String("category", ankiimport.Category(err)))
		return err
	}

	t.setStatus(TaskStatusCompleted)
	t.logger.Info("import completed",
		slog.Int("imported", summary.Imported),
		slog.Int("failed", summary.Failed))
	return nil
}

// Summary returns the import summary, or nil before Execute or when the
// import failed without one.
func (t *ImportTask) Summary() *ankiimport.Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.summary
}

// Result returns the JSON-encoded summary.
func (t *ImportTask) Result() json.RawMessage {
	summary := t.Summary()
	if summary == nil {
		return nil
	}
	data, err := json.Marshal(summary)
	if err != nil {
		t.logger.Error("failed to encode import summary", slog.String("error", err.Error()))
		return nil
	}
	return data
}

// ErrorCategory implements Categorizer.
func (t *ImportTask) ErrorCategory(err error) string {
	return ankiimport.Category(err)
}
