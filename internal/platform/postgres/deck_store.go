package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/domain"
	"github.com/phrazzld/scry-decks/internal/platform/logger"
	"github.com/phrazzld/scry-decks/internal/store"
)

const deckColumns = `id, user_id, name, parent_deck_id, created_at`

// PostgresDeckStore implements the store.DeckStore interface
// using a PostgreSQL database as the storage backend.
type PostgresDeckStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresDeckStore creates a new PostgreSQL implementation of the DeckStore interface.
func NewPostgresDeckStore(db store.DBTX, logger *slog.Logger) *PostgresDeckStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresDeckStore{
		db:     db,
		logger: logger.With(slog.String("component", "deck_store")),
	}
}

var _ store.DeckStore = (*PostgresDeckStore)(nil)

// FindOrCreate implements store.DeckStore.FindOrCreate
// A concurrent insert of the same (user, parent, name) is absorbed by
// ON CONFLICT and the winner's row is returned.
func (s *PostgresDeckStore) FindOrCreate(
	ctx context.Context,
	userID uuid.UUID,
	name string,
	parentID *uuid.UUID,
) (*domain.Deck, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	name = strings.TrimSpace(name)

	deck, err := s.find(ctx, userID, name, parentID)
	if err == nil {
		return deck, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		log.Error("failed to look up deck",
			slog.String("error", err.Error()),
			slog.String("name", name))
		return nil, store.NewStoreError("deck", "find", "failed to query deck", MapError(err))
	}

	candidate, err := domain.NewDeck(userID, name, parentID)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO decks (` + deckColumns + `)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT DO NOTHING
	`
	_, err = s.db.ExecContext(ctx, query,
		candidate.ID,
		candidate.UserID,
		candidate.Name,
		candidate.ParentID,
		candidate.CreatedAt,
	)
	if err != nil {
		log.Error("failed to insert deck",
			slog.String("error", err.Error()),
			slog.String("name", name))
		return nil, store.NewStoreError("deck", "create", "failed to insert deck", MapError(err))
	}

	deck, err = s.find(ctx, userID, name, parentID)
	if err != nil {
		return nil, store.NewStoreError("deck", "find", "failed to reload deck", MapError(err))
	}

	log.Debug("deck resolved",
		slog.String("deck_id", deck.ID.String()),
		slog.String("name", name),
		slog.Bool("created", deck.ID == candidate.ID))
	return deck, nil
}

func (s *PostgresDeckStore) find(ctx context.Context, userID uuid.UUID, name string, parentID *uuid.UUID) (*domain.Deck, error) {
	query := `
		SELECT ` + deckColumns + `
		FROM decks
		WHERE user_id = $1 AND name = $2 AND parent_deck_id IS NOT DISTINCT FROM $3
	`
	return scanDeck(s.db.QueryRowContext(ctx, query, userID, name, parentID))
}

// GetByID implements store.DeckStore.GetByID
func (s *PostgresDeckStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Deck, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	deck, err := scanDeck(s.db.QueryRowContext(ctx, `SELECT `+deckColumns+` FROM decks WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrDeckNotFound
		}
		log.Error("failed to get deck",
			slog.String("error", err.Error()),
			slog.String("deck_id", id.String()))
		return nil, store.NewStoreError("deck", "get", "failed to query deck", MapError(err))
	}
	return deck, nil
}

// ListByUser implements store.DeckStore.ListByUser
func (s *PostgresDeckStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Deck, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+deckColumns+` FROM decks WHERE user_id = $1 ORDER BY name ASC, id ASC`, userID)
	if err != nil {
		log.Error("failed to list decks",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, store.NewStoreError("deck", "list", "failed to query decks", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var decks []*domain.Deck
	for rows.Next() {
		deck, err := scanDeck(rows)
		if err != nil {
			return nil, store.NewStoreError("deck", "list", "failed to scan deck", err)
		}
		decks = append(decks, deck)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("deck", "list", "failed to iterate decks", err)
	}
	return decks, nil
}

// Delete implements store.DeckStore.Delete
// Descendant decks and their cards go with it through ON DELETE CASCADE.
func (s *PostgresDeckStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM decks WHERE id = $1`, id)
	if err != nil {
		log.Error("failed to delete deck",
			slog.String("error", err.Error()),
			slog.String("deck_id", id.String()))
		return store.NewStoreError("deck", "delete", "failed to delete deck", MapError(err))
	}
	if err := CheckRowsAffected(result, "deck"); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.ErrDeckNotFound
		}
		return store.NewStoreError("deck", "delete", "failed to read delete result", err)
	}

	log.Info("deck deleted", slog.String("deck_id", id.String()))
	return nil
}

// WithTx implements store.DeckStore.WithTx
func (s *PostgresDeckStore) WithTx(tx *sql.Tx) store.DeckStore {
	return &PostgresDeckStore{db: tx, logger: s.logger}
}

func scanDeck(row rowScanner) (*domain.Deck, error) {
	var (
		deck      domain.Deck
		parentID  uuid.NullUUID
		createdAt time.Time
	)
	if err := row.Scan(&deck.ID, &deck.UserID, &deck.Name, &parentID, &createdAt); err != nil {
		return nil, err
	}
	if parentID.Valid {
		id := parentID.UUID
		deck.ParentID = &id
	}
	deck.CreatedAt = createdAt.UTC()
	return &deck, nil
}
