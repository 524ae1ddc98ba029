package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/domain"
)

// CardFilter selects cards for queue building. Zero values mean "no filter"
// except UserID, which is required.
type CardFilter struct {
	UserID           uuid.UUID
	DeckIDs          []uuid.UUID
	States           []domain.CardState
	DueAtOrBefore    time.Time
	IncludeSuspended bool
	Limit            int
}

// CardStore defines the interface for card persistence.
type CardStore interface {
	// Create inserts a validated card.
	Create(ctx context.Context, card *domain.Card) error

	// CreateMultiple inserts cards in order. It should run inside
	// RunInTransaction so that a failure leaves nothing behind.
	CreateMultiple(ctx context.Context, cards []*domain.Card) error

	// GetByID returns ErrCardNotFound if the card does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Card, error)

	// FindDue returns the cards matching filter, ordered by due time.
	FindDue(ctx context.Context, filter CardFilter) ([]domain.Card, error)

	// Update writes every scheduling field of card, but only if the stored
	// version still equals card.Version. On success card.Version is
	// incremented; on a stale version it returns ErrConflict.
	Update(ctx context.Context, card *domain.Card) error

	// Delete returns ErrCardNotFound if the card does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// WithTx returns a CardStore bound to tx.
	WithTx(tx *sql.Tx) CardStore
}
