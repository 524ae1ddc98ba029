package domain

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Ease bounds shared by the scheduler and the importer.
const (
	MinEase     = 1.3
	MaxEase     = 5.0
	DefaultEase = 2.5
)

// Card represents one flashcard owned by a single user, together with its
// scheduling state.
type Card struct {
	ID     uuid.UUID `json:"id"`
	DeckID uuid.UUID `json:"deck_id"`
	UserID uuid.UUID `json:"user_id"`

	Front string `json:"front"`
	Back  string `json:"back"`

	// Reversible cards may be shown back-first during a study session.
	Reversible bool `json:"reversible"`

	State             CardState  `json:"state"`
	Suspended         bool       `json:"suspended"`
	DueAt             time.Time  `json:"due_at"`
	IntervalDays      int        `json:"interval_days"`
	Ease              float64    `json:"ease"`
	LearningStepIndex int        `json:"learning_step_index"`
	Reps              int        `json:"reps"`
	Lapses            int        `json:"lapses"`
	LastReviewedAt    *time.Time `json:"last_reviewed_at,omitempty"`

	// Version is bumped on every persisted update and guards concurrent reviews.
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCard creates a New card that is due immediately.
// Returns an error if validation fails.
func NewCard(userID, deckID uuid.UUID, front, back string, ease float64, now time.Time) (*Card, error) {
	now = now.UTC()
	card := &Card{
		ID:        uuid.New(),
		DeckID:    deckID,
		UserID:    userID,
		Front:     front,
		Back:      back,
		State:     StateNew,
		DueAt:     now,
		Ease:      ease,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := card.Validate(); err != nil {
		return nil, err
	}

	return card, nil
}

// Validate checks the Card State Model invariants.
// It must pass before a card is persisted or returned by the scheduler.
func (c *Card) Validate() error {
	if c.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty", ErrInvalidID)
	}
	if c.DeckID == uuid.Nil {
		return NewValidationError("deck_id", "cannot be empty", ErrInvalidID)
	}
	if c.UserID == uuid.Nil {
		return NewValidationError("user_id", "cannot be empty", ErrInvalidID)
	}
	if strings.TrimSpace(c.Front) == "" {
		return NewValidationError("front", "cannot be blank", ErrEmptyContent)
	}
	if strings.TrimSpace(c.Back) == "" {
		return NewValidationError("back", "cannot be blank", ErrEmptyContent)
	}
	if !storableText(c.Front) {
		return NewValidationError("front", "must be valid UTF-8 without NUL bytes", ErrValidation)
	}
	if !storableText(c.Back) {
		return NewValidationError("back", "must be valid UTF-8 without NUL bytes", ErrValidation)
	}
	if !c.State.IsValid() {
		return NewValidationError("state", "is not a known state", ErrInvalidState)
	}
	if !IsValidInstant(c.DueAt) {
		return NewValidationError("due_at", "is not a valid instant", ErrInvalidInstant)
	}
	if c.LastReviewedAt != nil && !IsValidInstant(*c.LastReviewedAt) {
		return NewValidationError("last_reviewed_at", "is not a valid instant", ErrInvalidInstant)
	}
	if c.IntervalDays < 0 {
		return NewValidationError("interval_days", "must be non-negative", ErrValidation)
	}
	if c.IntervalDays > math.MaxInt32 {
		return NewValidationError("interval_days", "exceeds the storable range", ErrValidation)
	}
	if c.Ease < MinEase || c.Ease > MaxEase {
		return NewValidationError("ease", "must be between 1.3 and 5.0", ErrValidation)
	}
	if c.LearningStepIndex < 0 {
		return NewValidationError("learning_step_index", "must be non-negative", ErrValidation)
	}
	if c.LearningStepIndex > math.MaxInt32 {
		return NewValidationError("learning_step_index", "exceeds the storable range", ErrValidation)
	}
	if c.Reps < 0 {
		return NewValidationError("reps", "must be non-negative", ErrValidation)
	}
	if c.Reps > math.MaxInt32 {
		return NewValidationError("reps", "exceeds the storable range", ErrValidation)
	}
	if c.Lapses < 0 {
		return NewValidationError("lapses", "must be non-negative", ErrValidation)
	}
	if c.Lapses > math.MaxInt32 {
		return NewValidationError("lapses", "exceeds the storable range", ErrValidation)
	}
	return nil
}

// storableText rejects strings a text column cannot hold.
func storableText(s string) bool {
	return utf8.ValidString(s) && !strings.ContainsRune(s, 0)
}

// IsDue reports whether the card is eligible for study at now.
func (c *Card) IsDue(now time.Time) bool {
	return !c.DueAt.After(now)
}

// Clone returns a deep copy of the card.
func (c Card) Clone() Card {
	if c.LastReviewedAt != nil {
		t := *c.LastReviewedAt
		c.LastReviewedAt = &t
	}
	return c
}
