package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/domain"
	"github.com/phrazzld/scry-decks/internal/platform/logger"
	"github.com/phrazzld/scry-decks/internal/store"
)

const cardColumns = `id, user_id, deck_id, front, back, reversible, state, suspended, due_at,
	interval_days, ease, learning_step_index, reps, lapses, last_reviewed_at, version,
	created_at, updated_at`

// PostgresCardStore implements the store.CardStore interface
// using a PostgreSQL database as the storage backend.
type PostgresCardStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresCardStore creates a new PostgreSQL implementation of the CardStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresCardStore(db store.DBTX, logger *slog.Logger) *PostgresCardStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresCardStore{
		db:     db,
		logger: logger.With(slog.String("component", "card_store")),
	}
}

// Ensure PostgresCardStore implements store.CardStore interface
var _ store.CardStore = (*PostgresCardStore)(nil)

// Create implements store.CardStore.Create
func (s *PostgresCardStore) Create(ctx context.Context, card *domain.Card) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := card.Validate(); err != nil {
		log.Warn("card validation failed during create",
			slog.String("error", err.Error()),
			slog.String("card_id", card.ID.String()))
		return err
	}

	if err := s.insert(ctx, card); err != nil {
		log.Error("failed to insert card",
			slog.String("error", err.Error()),
			slog.String("card_id", card.ID.String()),
			slog.String("deck_id", card.DeckID.String()))
		return store.NewStoreError("card", "create", "failed to insert card", MapError(err))
	}

	log.Debug("card created", slog.String("card_id", card.ID.String()))
	return nil
}

// CreateMultiple implements store.CardStore.CreateMultiple
// Cards are inserted in order and every card is validated first, so an
// invalid card inserts nothing.
func (s *PostgresCardStore) CreateMultiple(ctx context.Context, cards []*domain.Card) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	for i, card := range cards {
		if err := card.Validate(); err != nil {
			log.Warn("card validation failed during batch create",
				slog.Int("index", i),
				slog.String("error", err.Error()))
			return fmt.Errorf("card %d: %w", i, err)
		}
	}

	for _, card := range cards {
		if err := s.insert(ctx, card); err != nil {
			log.Error("failed to insert card in batch",
				slog.String("error", err.Error()),
				slog.String("card_id", card.ID.String()))
			return store.NewStoreError("card", "create", "failed to insert card batch", MapError(err))
		}
	}

	log.Debug("cards created", slog.Int("count", len(cards)))
	return nil
}

func (s *PostgresCardStore) insert(ctx context.Context, card *domain.Card) error {
	query := `
		INSERT INTO cards (` + cardColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err := s.db.ExecContext(ctx, query,
		card.ID,
		card.UserID,
		card.DeckID,
		card.Front,
		card.Back,
		card.Reversible,
		string(card.State),
		card.Suspended,
		card.DueAt.UTC(),
		card.IntervalDays,
		card.Ease,
		card.LearningStepIndex,
		card.Reps,
		card.Lapses,
		card.LastReviewedAt,
		card.Version,
		card.CreatedAt.UTC(),
		card.UpdatedAt.UTC(),
	)
	return err
}

// GetByID implements store.CardStore.GetByID
func (s *PostgresCardStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = $1`
	card, err := scanCard(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("card not found", slog.String("card_id", id.String()))
			return nil, store.ErrCardNotFound
		}
		log.Error("failed to get card",
			slog.String("error", err.Error()),
			slog.String("card_id", id.String()))
		return nil, store.NewStoreError("card", "get", "failed to query card", MapError(err))
	}

	return &card, nil
}

// FindDue implements store.CardStore.FindDue
func (s *PostgresCardStore) FindDue(ctx context.Context, filter store.CardFilter) ([]domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if filter.UserID == uuid.Nil {
		return nil, domain.NewValidationError("user_id", "cannot be empty", domain.ErrInvalidID)
	}

	query, args := buildFindDueQuery(filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query due cards",
			slog.String("error", err.Error()),
			slog.String("user_id", filter.UserID.String()))
		return nil, store.NewStoreError("card", "find_due", "failed to query cards", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var cards []domain.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, store.NewStoreError("card", "find_due", "failed to scan card", err)
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("card", "find_due", "failed to iterate cards", err)
	}

	log.Debug("due cards loaded",
		slog.String("user_id", filter.UserID.String()),
		slog.Int("count", len(cards)))
	return cards, nil
}

// buildFindDueQuery renders filter as a parameterised query. IN lists use
// one placeholder per value.
func buildFindDueQuery(filter store.CardFilter) (string, []any) {
	var b strings.Builder
	args := []any{filter.UserID}

	b.WriteString(`SELECT ` + cardColumns + ` FROM cards WHERE user_id = $1`)

	if !filter.IncludeSuspended {
		b.WriteString(` AND NOT suspended`)
	}

	if len(filter.DeckIDs) > 0 {
		b.WriteString(` AND deck_id IN (`)
		for i, id := range filter.DeckIDs {
			if i > 0 {
				b.WriteString(", ")
			}
			args = append(args, id)
			fmt.Fprintf(&b, "$%d", len(args))
		}
		b.WriteString(")")
	}

	if len(filter.States) > 0 {
		b.WriteString(` AND state IN (`)
		for i, state := range filter.States {
			if i > 0 {
				b.WriteString(", ")
			}
			args = append(args, string(state))
			fmt.Fprintf(&b, "$%d", len(args))
		}
		b.WriteString(")")
	}

	if !filter.DueAtOrBefore.IsZero() {
		args = append(args, filter.DueAtOrBefore.UTC())
		fmt.Fprintf(&b, " AND due_at <= $%d", len(args))
	}

	b.WriteString(" ORDER BY due_at ASC, id ASC")

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}

	return b.String(), args
}

// Update implements store.CardStore.Update
// The row is only written when its version still matches card.Version.
func (s *PostgresCardStore) Update(ctx context.Context, card *domain.Card) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := card.Validate(); err != nil {
		log.Warn("card validation failed during update",
			slog.String("error", err.Error()),
			slog.String("card_id", card.ID.String()))
		return err
	}

	query := `
		UPDATE cards
		SET deck_id = $1, front = $2, back = $3, reversible = $4, state = $5,
			suspended = $6, due_at = $7, interval_days = $8, ease = $9,
			learning_step_index = $10, reps = $11, lapses = $12,
			last_reviewed_at = $13, updated_at = $14, version = version + 1
		WHERE id = $15 AND version = $16
	`
	result, err := s.db.ExecContext(ctx, query,
		card.DeckID,
		card.Front,
		card.Back,
		card.Reversible,
		string(card.State),
		card.Suspended,
		card.DueAt.UTC(),
		card.IntervalDays,
		card.Ease,
		card.LearningStepIndex,
		card.Reps,
		card.Lapses,
		card.LastReviewedAt,
		card.UpdatedAt.UTC(),
		card.ID,
		card.Version,
	)
	if err != nil {
		log.Error("failed to update card",
			slog.String("error", err.Error()),
			slog.String("card_id", card.ID.String()))
		return store.NewStoreError("card", "update", "failed to update card", MapError(err))
	}

	if err := CheckRowsAffected(result, "card"); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return store.NewStoreError("card", "update", "failed to read update result", err)
		}
		return s.classifyMissedUpdate(ctx, card)
	}

	card.Version++
	log.Debug("card updated",
		slog.String("card_id", card.ID.String()),
		slog.Int("version", card.Version))
	return nil
}

// classifyMissedUpdate tells a deleted card apart from a stale version.
func (s *PostgresCardStore) classifyMissedUpdate(ctx context.Context, card *domain.Card) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM cards WHERE id = $1)`, card.ID).Scan(&exists)
	if err != nil {
		return store.NewStoreError("card", "update", "failed to check card existence", MapError(err))
	}
	if !exists {
		return store.ErrCardNotFound
	}

	log.Info("stale card version rejected",
		slog.String("card_id", card.ID.String()),
		slog.Int("version", card.Version))
	return fmt.Errorf("card %s at version %d: %w", card.ID, card.Version, store.ErrConflict)
}

// Delete implements store.CardStore.Delete
func (s *PostgresCardStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM cards WHERE id = $1`, id)
	if err != nil {
		log.Error("failed to delete card",
			slog.String("error", err.Error()),
			slog.String("card_id", id.String()))
		return store.NewStoreError("card", "delete", "failed to delete card", MapError(err))
	}

	if err := CheckRowsAffected(result, "card"); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.ErrCardNotFound
		}
		return store.NewStoreError("card", "delete", "failed to read delete result", err)
	}

	log.Debug("card deleted", slog.String("card_id", id.String()))
	return nil
}

// WithTx implements store.CardStore.WithTx
func (s *PostgresCardStore) WithTx(tx *sql.Tx) store.CardStore {
	return &PostgresCardStore{
		db:     tx,
		logger: s.logger,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (domain.Card, error) {
	var (
		card       domain.Card
		state      string
		lastReview sql.NullTime
	)

	err := row.Scan(
		&card.ID,
		&card.UserID,
		&card.DeckID,
		&card.Front,
		&card.Back,
		&card.Reversible,
		&state,
		&card.Suspended,
		&card.DueAt,
		&card.IntervalDays,
		&card.Ease,
		&card.LearningStepIndex,
		&card.Reps,
		&card.Lapses,
		&lastReview,
		&card.Version,
		&card.CreatedAt,
		&card.UpdatedAt,
	)
	if err != nil {
		return domain.Card{}, err
	}

	card.State = domain.CardState(state)
	card.DueAt = card.DueAt.UTC()
	card.CreatedAt = card.CreatedAt.UTC()
	card.UpdatedAt = card.UpdatedAt.UTC()
	if lastReview.Valid {
		t := lastReview.Time.UTC()
		card.LastReviewedAt = &t
	}
	return card, nil
}
