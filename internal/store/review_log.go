package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/domain"
)

// ReviewLogStore persists the append-only review history.
type ReviewLogStore interface {
	// Append inserts a review log entry. Entries are never updated.
	Append(ctx context.Context, entry *domain.ReviewLog) error

	// CountSince counts the user's entries reviewed at or after since whose
	// previous state equals previousState.
	CountSince(ctx context.Context, userID uuid.UUID, since time.Time, previousState domain.CardState) (int, error)

	// WithTx returns a ReviewLogStore bound to tx.
	WithTx(tx *sql.Tx) ReviewLogStore
}
