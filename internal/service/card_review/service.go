package card_review

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/domain"
	"github.com/phrazzld/scry-decks/internal/domain/queue"
	"github.com/phrazzld/scry-decks/internal/domain/srs"
)

// ReviewAnswer represents a user's answer to a flashcard review.
type ReviewAnswer struct {
	Rating    domain.Rating `json:"rating" validate:"required,oneof=again hard good easy"`
	ElapsedMs int64         `json:"elapsed_ms" validate:"gte=0"`
}

// QueueOptions narrows the study queue.
type QueueOptions struct {
	// DeckIDs restricts the queue to these decks; empty means every deck.
	DeckIDs []uuid.UUID
}

// StudyQueue is the ordered list of cards to study now.
type StudyQueue struct {
	Cards    []domain.Card       `json:"cards"`
	Counters queue.DailyCounters `json:"counters"`
}

// CardReviewService grades cards and builds study queues.
type CardReviewService interface {
	// GetQueue builds the user's study queue for now, honouring the daily
	// quotas already used up since the start of the local day.
	GetQueue(ctx context.Context, userID uuid.UUID, opts QueueOptions) (*StudyQueue, error)

	// PreviewIntervals reports what each rating would do to a card.
	PreviewIntervals(ctx context.Context, userID, cardID uuid.UUID) (srs.Preview, error)

	// SubmitAnswer grades a card, persists it and appends a review log entry
	// in one transaction. A concurrent review of the same card is retried on
	// a fresh read a bounded number of times.
	//
	// Returns ErrCardNotFound, ErrCardNotOwned, ErrCardSuspended,
	// ErrInvalidAnswer or ErrConcurrentReview for the corresponding caller
	// errors.
	SubmitAnswer(ctx context.Context, userID, cardID uuid.UUID, answer ReviewAnswer) (*srs.GradedResult, error)
}

// Common error types for CardReviewService
var (
	// ErrCardNotFound indicates that the card does not exist.
	ErrCardNotFound = errors.New("card not found")

	// ErrCardNotOwned indicates that the user does not own the card.
	ErrCardNotOwned = errors.New("unauthorized access: card not owned by user")

	// ErrCardSuspended indicates that a suspended card was submitted for review.
	ErrCardSuspended = errors.New("card is suspended")

	// ErrInvalidAnswer indicates an invalid answer was provided.
	ErrInvalidAnswer = errors.New("invalid answer")

	// ErrConcurrentReview indicates the card kept changing underneath the
	// review until the retry budget ran out.
	ErrConcurrentReview = errors.New("card was reviewed concurrently")
)

// ServiceError wraps errors from the card review service with additional context.
// This allows consumers to differentiate between different types of service errors
// using errors.As instead of string matching.
type ServiceError struct {
	// Operation is the operation that failed (e.g., "get_queue", "submit_answer")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewSubmitAnswerError returns a new ServiceError for the submit_answer operation.
func NewSubmitAnswerError(message string, err error) *ServiceError {
	return &ServiceError{Operation: "submit_answer", Message: message, Err: err}
}

// NewGetQueueError returns a new ServiceError for the get_queue operation.
func NewGetQueueError(message string, err error) *ServiceError {
	return &ServiceError{Operation: "get_queue", Message: message, Err: err}
}

// NewPreviewError returns a new ServiceError for the preview operation.
func NewPreviewError(message string, err error) *ServiceError {
	return &ServiceError{Operation: "preview", Message: message, Err: err}
}
