package ankiimport

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/domain"
)

// deckTree resolves foreign deck ids to owner decks, creating each path
// segment once per import.
type deckTree struct {
	ownerID  uuid.UUID
	foreign  map[int64]foreignDeck
	resolver DeckResolver

	byForeignID map[int64]*domain.Deck
	byPath      map[string]*domain.Deck
}

func newDeckTree(ownerID uuid.UUID, foreign map[int64]foreignDeck, resolver DeckResolver) *deckTree {
	return &deckTree{
		ownerID:     ownerID,
		foreign:     foreign,
		resolver:    resolver,
		byForeignID: make(map[int64]*domain.Deck),
		byPath:      make(map[string]*domain.Deck),
	}
}

// resolve returns the leaf deck for a foreign deck id.
func (t *deckTree) resolve(ctx context.Context, foreignID int64) (*domain.Deck, error) {
	if deck, ok := t.byForeignID[foreignID]; ok {
		return deck, nil
	}

	fd, ok := t.foreign[foreignID]
	if !ok {
		return nil, fmt.Errorf("deck %d is not described in the collection", foreignID)
	}

	segments := domain.SplitDeckPath(fd.Name)
	if len(segments) == 0 {
		return nil, fmt.Errorf("deck %d has an empty name", foreignID)
	}

	var (
		parent *domain.Deck
		path   string
	)
	for i, segment := range segments {
		if i == 0 {
			path = segment
		} else {
			path += domain.DeckPathSeparator + segment
		}

		if deck, ok := t.byPath[path]; ok {
			parent = deck
			continue
		}

		var parentID *uuid.UUID
		if parent != nil {
			id := parent.ID
			parentID = &id
		}
		deck, err := t.resolver.FindOrCreate(ctx, t.ownerID, segment, parentID)
		if err != nil {
			return nil, fmt.Errorf("resolve deck %q: %w", path, err)
		}
		t.byPath[path] = deck
		parent = deck
	}

	t.byForeignID[foreignID] = parent
	return parent, nil
}

// filtered reports whether foreignID is a filtered (dynamic) deck.
func (t *deckTree) filtered(foreignID int64) bool {
	return t.foreign[foreignID].Dynamic
}

// touched is the number of distinct decks resolved during the import.
func (t *deckTree) touched() int {
	return len(t.byPath)
}
