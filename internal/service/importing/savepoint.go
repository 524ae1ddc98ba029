package importing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/ankiimport"
	"github.com/phrazzld/scry-decks/internal/domain"
)

// savepointName marks the start of one import write. Postgres aborts the
// whole transaction on a failed statement unless it is rolled back to a
// savepoint first.
const savepointName = "import_item"

// withSavepoint runs fn between SAVEPOINT and RELEASE, rolling back to the
// savepoint when fn fails so the transaction stays usable.
func withSavepoint(ctx context.Context, tx *sql.Tx, fn func() error) error {
	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+savepointName); err != nil {
		return fmt.Errorf("failed to create savepoint: %w", err)
	}

	if err := fn(); err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+savepointName); rbErr != nil {
			return errors.Join(err, fmt.Errorf("failed to roll back to savepoint: %w", rbErr))
		}
		return err
	}

	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+savepointName); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	return nil
}

// savepointDecks isolates each deck lookup or insert.
type savepointDecks struct {
	tx    *sql.Tx
	decks ankiimport.DeckResolver
}

func (s savepointDecks) FindOrCreate(
	ctx context.Context,
	userID uuid.UUID,
	name string,
	parentID *uuid.UUID,
) (*domain.Deck, error) {
	var deck *domain.Deck
	err := withSavepoint(ctx, s.tx, func() error {
		var err error
		deck, err = s.decks.FindOrCreate(ctx, userID, name, parentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return deck, nil
}

// savepointCards isolates each card insert, so one rejected row does not
// poison the rest of the import.
type savepointCards struct {
	tx    *sql.Tx
	cards ankiimport.CardInserter
}

func (s savepointCards) Create(ctx context.Context, card *domain.Card) error {
	return withSavepoint(ctx, s.tx, func() error {
		return s.cards.Create(ctx, card)
	})
}
