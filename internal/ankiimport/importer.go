package ankiimport

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/domain"
	"github.com/phrazzld/scry-decks/internal/platform/logger"
)

// DefaultFailureThreshold is the highest tolerated share of failed cards.
const DefaultFailureThreshold = 0.10

// SkipReason names why a card was deliberately left out.
type SkipReason string

// SkipDefaultDeck marks cards that live in the reserved default deck.
const SkipDefaultDeck SkipReason = "default_deck"

// DeckResolver finds or creates the deck with name under parentID.
type DeckResolver interface {
	FindOrCreate(ctx context.Context, userID uuid.UUID, name string, parentID *uuid.UUID) (*domain.Deck, error)
}

// CardInserter persists one normalized card.
type CardInserter interface {
	Create(ctx context.Context, card *domain.Card) error
}

// CardFailure describes one card that could not be imported.
type CardFailure struct {
	ForeignID int64  `json:"foreign_id"`
	Reason    string `json:"reason"`
}

// Summary reports the outcome of an import.
type Summary struct {
	TotalCards    int                `json:"total_cards"`
	Imported      int                `json:"imported"`
	Skipped       map[SkipReason]int `json:"skipped"`
	Failed        int                `json:"failed"`
	Failures      []CardFailure      `json:"failures,omitempty"`
	DecksTouched  int                `json:"decks_touched"`
	MediaUploaded int                `json:"media_uploaded"`
	MediaFailed   int                `json:"media_failed"`
	Warnings      []string           `json:"warnings,omitempty"`
}

// Processed is the number of cards the failure rate is measured against.
func (s *Summary) Processed() int {
	return s.TotalCards - s.Skipped[SkipDefaultDeck]
}

// Config tunes an Importer. Zero values select defaults.
type Config struct {
	// TempDir holds the decoded collection database; empty means os.TempDir.
	TempDir string
	// FailureThreshold aborts the import when failed/processed exceeds it.
	FailureThreshold float64
	// Now supplies the import instant.
	Now func() time.Time
	// StartingEase is the ease given to new cards and to cards whose
	// foreign ease is out of range. Zero means domain.DefaultEase.
	StartingEase float64
	// MaxCollectionBytes caps the decoded size of the collection database
	// and of each media file. Zero means DefaultMaxCollectionBytes.
	MaxCollectionBytes int64
}

// Importer turns Anki collection archives into cards.
type Importer struct {
	cfg    Config
	logger *slog.Logger
}

// NewImporter creates an Importer. A nil logger uses slog.Default.
func NewImporter(cfg Config, logger *slog.Logger) *Importer {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if cfg.StartingEase < domain.MinEase || cfg.StartingEase > domain.MaxEase {
		cfg.StartingEase = domain.DefaultEase
	}
	if cfg.MaxCollectionBytes <= 0 {
		cfg.MaxCollectionBytes = DefaultMaxCollectionBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "anki_importer")),
	}
}

// ImportCollection imports archive for ownerID with default settings.
func ImportCollection(
	ctx context.Context,
	archive []byte,
	ownerID uuid.UUID,
	decks DeckResolver,
	media MediaUploader,
	cards CardInserter,
) (*Summary, error) {
	return NewImporter(Config{}, nil).Import(ctx, archive, ownerID, decks, media, cards)
}

// Import runs the import pipeline. Fatal problems return a typed error
// (InvalidArchiveError, CorruptDataError, ThresholdExceededError or
// ResourceError). Per-card and per-file problems are counted in the summary.
// When the failure threshold is exceeded the summary is returned alongside
// the error.
func (im *Importer) Import(
	ctx context.Context,
	data []byte,
	ownerID uuid.UUID,
	decks DeckResolver,
	media MediaUploader,
	cards CardInserter,
) (*Summary, error) {
	log := logger.FromContextOrDefault(ctx, im.logger).With(slog.String("owner_id", ownerID.String()))

	if ownerID == uuid.Nil {
		return nil, domain.NewValidationError("owner_id", "cannot be empty", domain.ErrInvalidID)
	}
	if decks == nil || cards == nil {
		return nil, fmt.Errorf("ankiimport: deck resolver and card inserter are required")
	}

	now := im.cfg.Now().UTC()
	summary := &Summary{Skipped: make(map[SkipReason]int)}

	arc, err := openArchive(data, im.cfg.MaxCollectionBytes)
	if err != nil {
		log.Warn("archive rejected", slog.String("error", err.Error()))
		return nil, err
	}

	name, dbBytes, err := arc.collection()
	if err != nil {
		log.Warn("no usable collection database", slog.String("error", err.Error()))
		return nil, err
	}
	log.Info("collection located", slog.String("entry", name), slog.Int("bytes", len(dbBytes)))

	col, err := openCollection(ctx, dbBytes, im.cfg.TempDir)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := col.Close(); cerr != nil {
			log.Error("failed to release temporary collection", slog.String("error", cerr.Error()))
		}
	}()

	created, err := col.creationTime(ctx)
	if err != nil {
		log.Warn("collection creation time rejected", slog.String("error", err.Error()))
		return nil, err
	}

	foreignDecks, err := col.decks(ctx)
	if err != nil {
		log.Warn("deck tree rejected", slog.String("error", err.Error()))
		return nil, err
	}

	foreignCards, err := col.cards(ctx)
	if err != nil {
		return nil, err
	}
	summary.TotalCards = len(foreignCards)

	urls := arc.uploadMedia(ctx, ownerID, media, summary, log)

	resolver := newDeckTree(ownerID, foreignDecks, decks)
	for _, fc := range foreignCards {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if fc.homeDeck() == defaultDeckID {
			summary.Skipped[SkipDefaultDeck]++
			continue
		}

		if fc.Problem != "" {
			log.Warn("card row unreadable",
				slog.Int64("foreign_card_id", fc.ID),
				slog.String("problem", fc.Problem))
			summary.Failed++
			summary.Failures = append(summary.Failures, CardFailure{ForeignID: fc.ID, Reason: "unreadable row: " + fc.Problem})
			continue
		}

		if reason := im.importCard(ctx, fc, ownerID, created, now, urls, resolver, cards, log); reason != "" {
			summary.Failed++
			summary.Failures = append(summary.Failures, CardFailure{ForeignID: fc.ID, Reason: reason})
			continue
		}
		summary.Imported++
	}
	summary.DecksTouched = resolver.touched()

	if processed := summary.Processed(); processed > 0 {
		if rate := float64(summary.Failed) / float64(processed); rate > im.cfg.FailureThreshold {
			terr := &ThresholdExceededError{Failed: summary.Failed, Processed: processed, Threshold: im.cfg.FailureThreshold}
			log.Warn("import aborted", slog.String("error", terr.Error()))
			return summary, terr
		}
	}

	if summary.Failed > 0 {
		summary.Warnings = append(summary.Warnings,
			fmt.Sprintf("%d cards were skipped because they could not be imported", summary.Failed))
	}
	if summary.MediaFailed > 0 {
		summary.Warnings = append(summary.Warnings,
			fmt.Sprintf("%d media files could not be uploaded", summary.MediaFailed))
	}

	log.Info("import finished",
		slog.Int("total", summary.TotalCards),
		slog.Int("imported", summary.Imported),
		slog.Int("failed", summary.Failed),
		slog.Int("skipped_default_deck", summary.Skipped[SkipDefaultDeck]),
		slog.Int("decks_touched", summary.DecksTouched),
		slog.Int("media_uploaded", summary.MediaUploaded))
	return summary, nil
}

// importCard normalizes and inserts one card. It returns a failure reason,
// or "" on success.
func (im *Importer) importCard(
	ctx context.Context,
	fc foreignCard,
	ownerID uuid.UUID,
	created, now time.Time,
	urls map[string]string,
	resolver *deckTree,
	cards CardInserter,
	log *slog.Logger,
) string {
	cardLog := log.With(slog.Int64("foreign_card_id", fc.ID))

	if fc.OriginalDeckID == 0 && resolver.filtered(fc.DeckID) {
		cardLog.Warn("card sits in a filtered deck without a home deck", slog.Int64("deck_id", fc.DeckID))
		return fmt.Sprintf("filtered deck %d has no home deck for the card", fc.DeckID)
	}

	deck, err := resolver.resolve(ctx, fc.homeDeck())
	if err != nil {
		cardLog.Warn("deck resolution failed", slog.String("error", err.Error()))
		return "deck: " + err.Error()
	}

	card, err := normalizeCard(fc, ownerID, deck.ID, created, now, im.cfg.StartingEase, urls, cardLog)
	if err != nil {
		cardLog.Debug("card failed validation", slog.String("error", err.Error()))
		return err.Error()
	}

	if err := cards.Create(ctx, card); err != nil {
		cardLog.Warn("card insert failed", slog.String("error", err.Error()))
		return "insert: " + err.Error()
	}
	return ""
}

// normalizeCard converts a foreign card into a validated domain card.
func normalizeCard(
	fc foreignCard,
	ownerID, deckID uuid.UUID,
	created, now time.Time,
	startingEase float64,
	urls map[string]string,
	log *slog.Logger,
) (*domain.Card, error) {
	state, suspended, known := stateFor(fc.Queue, fc.Type)
	if !known {
		log.Warn("unknown queue value, importing as new", slog.Int("queue", fc.Queue))
	}

	dueAt, fellBack := dueFor(fc.Queue, fc.Due, created, now)
	if fellBack {
		log.Warn("due value not convertible, using import time",
			slog.Int("queue", fc.Queue),
			slog.Int64("due", fc.Due))
	}

	front, missingFront := renderContent(fc.field(noteFieldFront), urls)
	back, missingBack := renderContent(fc.field(noteFieldBack), urls)
	for _, ref := range append(missingFront, missingBack...) {
		log.Info("media reference left unresolved", slog.String("src", ref))
	}

	card := &domain.Card{
		ID:           uuid.New(),
		DeckID:       deckID,
		UserID:       ownerID,
		Front:        front,
		Back:         back,
		State:        state,
		Suspended:    suspended,
		DueAt:        dueAt,
		IntervalDays: intervalFor(state, fc.Interval),
		Ease:         easeFor(state, fc.Factor, startingEase),
		Reps:         fc.Reps,
		Lapses:       fc.Lapses,
		CreatedAt:    createdFor(fc.ID, now),
		UpdatedAt:    now,
	}

	if err := card.Validate(); err != nil {
		return nil, err
	}
	return card, nil
}
