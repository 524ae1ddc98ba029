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

// MockCardStore implements store.CardStore in memory for testing.
// Update enforces the version check the real store does.
type MockCardStore struct {
	// Function fields for customizable behavior
	CreateFn func(ctx context.Context, card *domain.Card) error
	UpdateFn func(ctx context.Context, card *domain.Card) error

	// Error returned by every method when set
	Err error

	mu      sync.Mutex
	cards   map[uuid.UUID]domain.Card
	order   []uuid.UUID
	txCount int
}

var _ store.CardStore = (*MockCardStore)(nil)

// NewMockCardStore creates a store holding cards.
func NewMockCardStore(cards ...domain.Card) *MockCardStore {
	m := &MockCardStore{cards: make(map[uuid.UUID]domain.Card)}
	for _, c := range cards {
		m.put(c)
	}
	return m
}

func (m *MockCardStore) put(c domain.Card) {
	if _, ok := m.cards[c.ID]; !ok {
		m.order = append(m.order, c.ID)
	}
	m.cards[c.ID] = c.Clone()
}

// Create implements the CardStore interface
func (m *MockCardStore) Create(ctx context.Context, card *domain.Card) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, card)
	}
	if m.Err != nil {
		return m.Err
	}
	if err := card.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.cards[card.ID]; exists {
		return store.ErrDuplicate
	}
	m.put(*card)
	return nil
}

// CreateMultiple implements the CardStore interface
func (m *MockCardStore) CreateMultiple(ctx context.Context, cards []*domain.Card) error {
	for _, c := range cards {
		if err := m.Create(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// GetByID implements the CardStore interface
func (m *MockCardStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Card, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cards[id]
	if !ok {
		return nil, store.ErrCardNotFound
	}
	out := c.Clone()
	return &out, nil
}

// FindDue implements the CardStore interface. States and Limit are honoured.
func (m *MockCardStore) FindDue(_ context.Context, filter store.CardFilter) ([]domain.Card, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []domain.Card{}
	for _, id := range m.order {
		c := m.cards[id]
		switch {
		case c.UserID != filter.UserID:
		case len(filter.DeckIDs) > 0 && !slices.Contains(filter.DeckIDs, c.DeckID):
		case len(filter.States) > 0 && !slices.Contains(filter.States, c.State):
		case !filter.DueAtOrBefore.IsZero() && c.DueAt.After(filter.DueAtOrBefore):
		case c.Suspended && !filter.IncludeSuspended:
		default:
			out = append(out, c.Clone())
		}
	}
	slices.SortStableFunc(out, func(a, b domain.Card) int { return a.DueAt.Compare(b.DueAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Update implements the CardStore interface
func (m *MockCardStore) Update(ctx context.Context, card *domain.Card) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, card)
	}
	if m.Err != nil {
		return m.Err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.cards[card.ID]
	if !ok {
		return store.ErrCardNotFound
	}
	if current.Version != card.Version {
		return store.ErrConflict
	}
	card.Version++
	m.put(*card)
	return nil
}

// Delete implements the CardStore interface
func (m *MockCardStore) Delete(_ context.Context, id uuid.UUID) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cards[id]; !ok {
		return store.ErrCardNotFound
	}
	delete(m.cards, id)
	m.order = slices.DeleteFunc(m.order, func(other uuid.UUID) bool { return other == id })
	return nil
}

// WithTx implements the CardStore interface; the mock ignores the transaction.
func (m *MockCardStore) WithTx(*sql.Tx) store.CardStore {
	m.mu.Lock()
	m.txCount++
	m.mu.Unlock()
	return m
}

// Cards returns a snapshot of the stored cards in insertion order.
func (m *MockCardStore) Cards() []domain.Card {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Card, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.cards[id].Clone())
	}
	return out
}

// TxCount reports how many times WithTx was called.
func (m *MockCardStore) TxCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.txCount
}
