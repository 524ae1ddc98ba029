package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DeckPathSeparator joins deck names into a hierarchical path.
const DeckPathSeparator = "::"

// Deck is a named node in a user's deck tree.
type Deck struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	Name      string     `json:"name"`
	ParentID  *uuid.UUID `json:"parent_deck_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// NewDeck creates a deck under the given parent (nil for a root deck).
func NewDeck(userID uuid.UUID, name string, parentID *uuid.UUID) (*Deck, error) {
	deck := &Deck{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      strings.TrimSpace(name),
		ParentID:  parentID,
		CreatedAt: time.Now().UTC(),
	}
	if err := deck.Validate(); err != nil {
		return nil, err
	}
	return deck, nil
}

// Validate checks the deck's own fields. Acyclicity needs the whole tree; see DeckPath.
func (d *Deck) Validate() error {
	if d.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty", ErrInvalidID)
	}
	if d.UserID == uuid.Nil {
		return NewValidationError("user_id", "cannot be empty", ErrInvalidID)
	}
	if d.Name == "" {
		return NewValidationError("name", "cannot be blank", ErrEmptyContent)
	}
	if strings.Contains(d.Name, DeckPathSeparator) {
		return NewValidationError("name", "cannot contain the path separator", ErrValidation)
	}
	if d.ParentID != nil && *d.ParentID == d.ID {
		return NewValidationError("parent_deck_id", "cannot reference itself", ErrDeckCycle)
	}
	return nil
}

// DeckPath returns the full path of the deck with the given id, walking parent
// links through decks. A parent chain that revisits a deck returns ErrDeckCycle.
func DeckPath(decks map[uuid.UUID]*Deck, id uuid.UUID) (string, error) {
	var names []string
	seen := make(map[uuid.UUID]struct{})

	current := id
	for {
		if _, ok := seen[current]; ok {
			return "", ErrDeckCycle
		}
		seen[current] = struct{}{}

		deck, ok := decks[current]
		if !ok {
			return "", NewValidationError("parent_deck_id", "references an unknown deck", ErrInvalidID)
		}
		names = append(names, deck.Name)

		if deck.ParentID == nil {
			break
		}
		current = *deck.ParentID
	}

	// Collected leaf-first.
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return strings.Join(names, DeckPathSeparator), nil
}

// SplitDeckPath splits a hierarchical deck name into trimmed, non-empty segments.
func SplitDeckPath(path string) []string {
	raw := strings.Split(path, DeckPathSeparator)
	segments := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// Descendants returns the ids of root and every deck beneath it.
// Cycles are tolerated: each deck is visited once.
func Descendants(decks []*Deck, root uuid.UUID) []uuid.UUID {
	children := make(map[uuid.UUID][]uuid.UUID)
	for _, d := range decks {
		if d.ParentID != nil {
			children[*d.ParentID] = append(children[*d.ParentID], d.ID)
		}
	}

	visited := map[uuid.UUID]struct{}{root: {}}
	out := []uuid.UUID{root}
	for i := 0; i < len(out); i++ {
		for _, child := range children[out[i]] {
			if _, ok := visited[child]; ok {
				continue
			}
			visited[child] = struct{}{}
			out = append(out, child)
		}
	}
	return out
}
