package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReviewLog is an immutable record of one graded review.
// It is appended once and never updated.
type ReviewLog struct {
	ID               uuid.UUID `json:"id"`
	CardID           uuid.UUID `json:"card_id"`
	UserID           uuid.UUID `json:"user_id"`
	Rating           Rating    `json:"rating"`
	ReviewedAt       time.Time `json:"reviewed_at"`
	PreviousState    CardState `json:"previous_state"`
	PreviousInterval int       `json:"previous_interval"`
	NewInterval      int       `json:"new_interval"`
	NewDueAt         time.Time `json:"new_due_at"`
	ElapsedMs        int64     `json:"elapsed_ms"`
}

// Validate checks that the log entry is complete.
func (l *ReviewLog) Validate() error {
	if l.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty", ErrInvalidID)
	}
	if l.CardID == uuid.Nil {
		return NewValidationError("card_id", "cannot be empty", ErrInvalidID)
	}
	if !l.Rating.IsValid() {
		return NewValidationError("rating", "is not a known rating", ErrInvalidRating)
	}
	if !l.PreviousState.IsValid() {
		return NewValidationError("previous_state", "is not a known state", ErrInvalidState)
	}
	if !IsValidInstant(l.ReviewedAt) || !IsValidInstant(l.NewDueAt) {
		return NewValidationError("reviewed_at", "is not a valid instant", ErrInvalidInstant)
	}
	if l.ElapsedMs < 0 {
		return NewValidationError("elapsed_ms", "must be non-negative", ErrValidation)
	}
	return nil
}
