package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/phrazzld/scry-decks/internal/ankiimport"
	"github.com/phrazzld/scry-decks/internal/api/shared"
	"github.com/phrazzld/scry-decks/internal/cache"
	"github.com/phrazzld/scry-decks/internal/platform/clock"
	"github.com/phrazzld/scry-decks/internal/platform/logger"
	"github.com/phrazzld/scry-decks/internal/service/importing"
	"github.com/phrazzld/scry-decks/internal/store"
	"github.com/phrazzld/scry-decks/internal/task"
)

// importFormField is the multipart field carrying the archive.
const importFormField = "file"

// multipartOverhead allows for boundaries and part headers around the archive.
const multipartOverhead = 64 << 10

// limiterIdleTTL is how long an unused per-user limiter is kept.
const limiterIdleTTL = time.Hour

// TaskSubmitter queues background tasks.
type TaskSubmitter interface {
	Submit(ctx context.Context, t task.Task) error
}

// TaskReader looks up persisted tasks.
type TaskReader interface {
	GetTask(ctx context.Context, taskID uuid.UUID) (*task.Record, error)
}

// ImportLimits bounds collection uploads.
type ImportLimits struct {
	MaxArchiveBytes int64
	// RatePerMinute and Burst throttle submissions per user; a zero rate disables throttling.
	RatePerMinute float64
	Burst         int
	// MaxUsers bounds how many per-user limiters are tracked at once.
	MaxUsers int
}

// ImportHandler accepts collection uploads and reports on import jobs.
type ImportHandler struct {
	runner   TaskSubmitter
	tasks    TaskReader
	importer task.Importer
	limits   ImportLimits
	clock    clock.Clock
	limiters *cache.TTL[uuid.UUID, *rate.Limiter]
	logger   *slog.Logger
}

// NewImportHandler creates a new ImportHandler. A nil clock means the wall clock.
func NewImportHandler(
	runner TaskSubmitter,
	tasks TaskReader,
	importer task.Importer,
	limits ImportLimits,
	clk clock.Clock,
	logger *slog.Logger,
) *ImportHandler {
	if runner == nil || tasks == nil || importer == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("runner, tasks and importer are required for ImportHandler")
	}
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if limits.MaxUsers <= 0 {
		limits.MaxUsers = 10_000
	}

	return &ImportHandler{
		runner:   runner,
		tasks:    tasks,
		importer: importer,
		limits:   limits,
		clock:    clk,
		limiters: cache.NewTTL[uuid.UUID, *rate.Limiter](clk, limiterIdleTTL, limits.MaxUsers),
		logger:   logger.With(slog.String("component", "import_handler")),
	}
}

// SubmitImport handles POST /imports. The archive is either the "file" part
// of a multipart form or the raw request body. The import runs in the
// background; the response carries the job ID to poll.
func (h *ImportHandler) SubmitImport(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	if !h.allow(userID) {
		log.Warn("import rate limited", slog.String("user_id", userID.String()))
		w.Header().Set("Retry-After", "60")
		HandleAPIError(w, r, errImportRateLimited, "")
		return
	}

	archive, err := h.readArchive(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge), errors.Is(err, importing.ErrArchiveTooLarge):
			shared.RespondWithErrorAndLog(w, r, http.StatusRequestEntityTooLarge,
				"Archive exceeds the maximum import size", err, shared.WithCategory(ankiimport.CategoryResource))
		case errors.Is(err, ankiimport.ErrInvalidArchive), errors.Is(err, task.ErrEmptyArchive):
			HandleAPIError(w, r, err, "")
		default:
			shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid upload", err)
		}
		return
	}

	if err := sniffArchive(archive); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	job, err := task.NewImportTask(userID, archive, h.importer, log)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if err := h.runner.Submit(r.Context(), job); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	log.Info("import queued",
		slog.String("user_id", userID.String()),
		slog.String("job_id", job.ID().String()),
		slog.Int("archive_bytes", len(archive)))
	w.Header().Set("Location", "/api/imports/"+job.ID().String())
	shared.RespondWithJSON(w, r, http.StatusAccepted, ImportAcceptedResponse{
		JobID:  job.ID(),
		Status: task.TaskStatusPending,
	})
}

// GetImport handles GET /imports/{id}.
func (h *ImportHandler) GetImport(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, jobID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	rec, err := h.tasks.GetTask(r.Context(), jobID)
	if err != nil {
		HandleAPIError(w, r, err, "Import job not found")
		return
	}
	if rec.OwnerID != userID {
		HandleAPIError(w, r, store.ErrNotFound, "Import job not found")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, recordToResponse(rec))
}

func (h *ImportHandler) allow(userID uuid.UUID) bool {
	if h.limits.RatePerMinute <= 0 {
		return true
	}
	limiter, ok := h.limiters.Get(userID)
	if !ok {
		burst := max(h.limits.Burst, 1)
		limiter = rate.NewLimiter(rate.Limit(h.limits.RatePerMinute/60), burst)
		h.limiters.Set(userID, limiter)
	}
	return limiter.AllowN(h.clock.Now(), 1)
}

func (h *ImportHandler) readArchive(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	limit := h.limits.MaxArchiveBytes
	if limit <= 0 {
		limit = 1 << 30
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			return nil, task.ErrEmptyArchive
		}
		return data, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, task.ErrEmptyArchive
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() != importFormField {
			_ = part.Close()
			continue
		}

		data, err := io.ReadAll(io.LimitReader(part, limit+1))
		_ = part.Close()
		if err != nil {
			return nil, err
		}
		if int64(len(data)) > limit {
			return nil, importing.ErrArchiveTooLarge
		}
		if len(data) == 0 {
			return nil, task.ErrEmptyArchive
		}
		return data, nil
	}
}

// sniffArchive rejects uploads that are not zip files before they are queued.
func sniffArchive(data []byte) error {
	for mt := mimetype.Detect(data); mt != nil; mt = mt.Parent() {
		if mt.Is("application/zip") {
			return nil
		}
	}
	return &ankiimport.InvalidArchiveError{
		Err: fmt.Errorf("upload is %s, not a zip archive", mimetype.Detect(data).String()),
	}
}
