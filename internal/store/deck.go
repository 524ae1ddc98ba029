package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/domain"
)

// DeckStore defines the interface for deck persistence.
type DeckStore interface {
	// FindOrCreate returns the user's deck with this name under parentID
	// (nil for a root deck), creating it when absent.
	FindOrCreate(ctx context.Context, userID uuid.UUID, name string, parentID *uuid.UUID) (*domain.Deck, error)

	// GetByID returns ErrDeckNotFound if the deck does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Deck, error)

	// ListByUser returns every deck the user owns.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Deck, error)

	// Delete removes the deck together with its descendant decks and their cards.
	Delete(ctx context.Context, id uuid.UUID) error

	// WithTx returns a DeckStore bound to tx.
	WithTx(tx *sql.Tx) DeckStore
}
