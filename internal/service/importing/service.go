// Package importing runs Anki collection imports against the database.
package importing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/ankiimport"
	"github.com/phrazzld/scry-decks/internal/platform/logger"
	"github.com/phrazzld/scry-decks/internal/redact"
	"github.com/phrazzld/scry-decks/internal/store"
	"github.com/phrazzld/scry-decks/internal/task"
)

// ErrArchiveTooLarge is returned when an archive exceeds the configured size limit.
var ErrArchiveTooLarge = errors.New("archive exceeds the maximum import size")

// rolledBackWarning is appended to the summary of an import whose cards were discarded.
const rolledBackWarning = "import aborted: no cards or decks were saved"

// Pipeline imports one archive through the given stores. *ankiimport.Importer
// satisfies it.
type Pipeline interface {
	Import(
		ctx context.Context,
		data []byte,
		ownerID uuid.UUID,
		decks ankiimport.DeckResolver,
		media ankiimport.MediaUploader,
		cards ankiimport.CardInserter,
	) (*ankiimport.Summary, error)
}

// Deps are the collaborators of the import service.
type Deps struct {
	DB       store.Beginner
	Decks    store.DeckStore
	Cards    store.CardStore
	Media    ankiimport.MediaUploader
	Pipeline Pipeline
	// MaxArchiveBytes rejects larger archives; zero disables the check.
	MaxArchiveBytes int64
	Logger          *slog.Logger
}

// Service imports collections for a user in a single transaction, so an
// aborted import leaves no decks or cards behind. Every deck and card write
// runs under its own savepoint, so a rejected row fails only that card.
// Media uploads are not transactional.
type Service struct {
	db       store.Beginner
	decks    store.DeckStore
	cards    store.CardStore
	media    ankiimport.MediaUploader
	pipeline Pipeline
	maxBytes int64
	logger   *slog.Logger
}

var _ task.Importer = (*Service)(nil)

// NewService creates an import service. It panics when a store is missing.
func NewService(deps Deps) *Service {
	if deps.DB == nil {
		panic("db cannot be nil")
	}
	if deps.Decks == nil || deps.Cards == nil {
		panic("deck and card stores cannot be nil")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Pipeline == nil {
		deps.Pipeline = ankiimport.NewImporter(ankiimport.Config{}, deps.Logger)
	}

	return &Service{
		db:       deps.DB,
		decks:    deps.Decks,
		cards:    deps.Cards,
		media:    deps.Media,
		pipeline: deps.Pipeline,
		maxBytes: deps.MaxArchiveBytes,
		logger:   deps.Logger.With(slog.String("component", "import_service")),
	}
}

// Import implements task.Importer. When the pipeline aborts after producing
// a summary (too many failed cards) the summary is returned together with
// the error.
func (s *Service) Import(ctx context.Context, ownerID uuid.UUID, archive []byte) (*ankiimport.Summary, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		slog.String("owner_id", ownerID.String()),
		slog.Int("archive_bytes", len(archive)))

	if s.maxBytes > 0 && int64(len(archive)) > s.maxBytes {
		log.Warn("archive rejected", slog.Int64("max_bytes", s.maxBytes))
		return nil, &ankiimport.ResourceError{
			Op:  "read archive",
			Err: fmt.Errorf("%w: %d > %d bytes", ErrArchiveTooLarge, len(archive), s.maxBytes),
		}
	}

	var summary *ankiimport.Summary
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		decks := savepointDecks{tx: tx, decks: s.decks.WithTx(tx)}
		cards := savepointCards{tx: tx, cards: s.cards.WithTx(tx)}
		summary, err = s.pipeline.Import(ctx, archive, ownerID, decks, s.media, cards)
		return err
	})
	if err != nil {
		if summary != nil {
			summary.Warnings = append(summary.Warnings, rolledBackWarning)
		}
		log.Warn("import failed",
			slog.String("category", ankiimport.Category(err)),
			slog.String("error", redact.Error(err)))
		return summary, err
	}

	log.Info("import committed",
		slog.Int("imported", summary.Imported),
		slog.Int("failed", summary.Failed),
		slog.Int("decks", summary.DecksTouched),
		slog.Int("media", summary.MediaUploaded))
	return summary, nil
}
