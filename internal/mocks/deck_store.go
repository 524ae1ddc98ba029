package mocks

import (
	"context"
	"database/sql"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/domain"
	"github.com/phrazzld/scry-decks/internal/store"
)

// MockDeckStore implements store.DeckStore in memory for testing
type MockDeckStore struct {
	// Function fields for customizable behavior
	FindOrCreateFn func(ctx context.Context, userID uuid.UUID, name string, parentID *uuid.UUID) (*domain.Deck, error)
	DeleteFn       func(ctx context.Context, id uuid.UUID) error

	// Error returned by every method when set
	Err error

	mu      sync.Mutex
	decks   []*domain.Deck
	deleted []uuid.UUID
	txCount int
}

var _ store.DeckStore = (*MockDeckStore)(nil)

// NewMockDeckStore creates a store holding decks.
func NewMockDeckStore(decks ...*domain.Deck) *MockDeckStore {
	return &MockDeckStore{decks: decks}
}

// FindOrCreate implements the DeckStore interface
func (m *MockDeckStore) FindOrCreate(
	ctx context.Context,
	userID uuid.UUID,
	name string,
	parentID *uuid.UUID,
) (*domain.Deck, error) {
	if m.FindOrCreateFn != nil {
		return m.FindOrCreateFn(ctx, userID, name, parentID)
	}
	if m.Err != nil {
		return nil, m.Err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.decks {
		if d.UserID == userID && d.Name == name && sameParent(d.ParentID, parentID) {
			return d, nil
		}
	}
	deck, err := domain.NewDeck(userID, name, parentID)
	if err != nil {
		return nil, err
	}
	m.decks = append(m.decks, deck)
	return deck, nil
}

// GetByID implements the DeckStore interface
func (m *MockDeckStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Deck, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.decks {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, store.ErrDeckNotFound
}

// ListByUser implements the DeckStore interface
func (m *MockDeckStore) ListByUser(_ context.Context, userID uuid.UUID) ([]*domain.Deck, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Deck{}
	for _, d := range m.decks {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	return out, nil
}

// Delete implements the DeckStore interface. Descendant decks are removed too.
func (m *MockDeckStore) Delete(ctx context.Context, id uuid.UUID) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, id)
	}
	if m.Err != nil {
		return m.Err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	doomed := map[uuid.UUID]bool{id: true}
	found := false
	for changed := true; changed; {
		changed = false
		for _, d := range m.decks {
			if d.ID == id {
				found = true
			}
			if !doomed[d.ID] && d.ParentID != nil && doomed[*d.ParentID] {
				doomed[d.ID] = true
				changed = true
			}
		}
	}
	if !found {
		return store.ErrDeckNotFound
	}
	m.decks = slices.DeleteFunc(m.decks, func(d *domain.Deck) bool { return doomed[d.ID] })
	m.deleted = append(m.deleted, id)
	return nil
}

// WithTx implements the DeckStore interface; the mock ignores the transaction.
func (m *MockDeckStore) WithTx(*sql.Tx) store.DeckStore {
	m.mu.Lock()
	m.txCount++
	m.mu.Unlock()
	return m
}

// Decks returns a snapshot of the stored decks.
func (m *MockDeckStore) Decks() []*domain.Deck {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.decks)
}

// TxCount reports how many times WithTx was called.
func (m *MockDeckStore) TxCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.txCount
}

func sameParent(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
