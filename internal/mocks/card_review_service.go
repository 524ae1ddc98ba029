package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/domain/srs"
	"github.com/phrazzld/scry-decks/internal/service/card_review"
)

// MockCardReviewService implements card_review.CardReviewService for testing
type MockCardReviewService struct {
	// Custom behavior functions
	GetQueueFn         func(ctx context.Context, userID uuid.UUID, opts card_review.QueueOptions) (*card_review.StudyQueue, error)
	PreviewIntervalsFn func(ctx context.Context, userID, cardID uuid.UUID) (srs.Preview, error)
	SubmitAnswerFn     func(ctx context.Context, userID, cardID uuid.UUID, answer card_review.ReviewAnswer) (*srs.GradedResult, error)

	// Default response values
	Queue   *card_review.StudyQueue
	Preview srs.Preview
	Graded  *srs.GradedResult
	Err     error

	// Call tracking for verification
	SubmitAnswerCalls struct {
		mu      sync.Mutex
		Count   int
		UserIDs []uuid.UUID
		CardIDs []uuid.UUID
		Answers []card_review.ReviewAnswer
	}
}

var _ card_review.CardReviewService = (*MockCardReviewService)(nil)

// GetQueue implements the card_review.CardReviewService interface
func (m *MockCardReviewService) GetQueue(
	ctx context.Context,
	userID uuid.UUID,
	opts card_review.QueueOptions,
) (*card_review.StudyQueue, error) {
	if m.GetQueueFn != nil {
		return m.GetQueueFn(ctx, userID, opts)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Queue == nil {
		return &card_review.StudyQueue{}, nil
	}
	return m.Queue, nil
}

// PreviewIntervals implements the card_review.CardReviewService interface
func (m *MockCardReviewService) PreviewIntervals(ctx context.Context, userID, cardID uuid.UUID) (srs.Preview, error) {
	if m.PreviewIntervalsFn != nil {
		return m.PreviewIntervalsFn(ctx, userID, cardID)
	}
	return m.Preview, m.Err
}

// SubmitAnswer implements the card_review.CardReviewService interface
func (m *MockCardReviewService) SubmitAnswer(
	ctx context.Context,
	userID uuid.UUID,
	cardID uuid.UUID,
	answer card_review.ReviewAnswer,
) (*srs.GradedResult, error) {
	m.SubmitAnswerCalls.mu.Lock()
	m.SubmitAnswerCalls.Count++
	m.SubmitAnswerCalls.UserIDs = append(m.SubmitAnswerCalls.UserIDs, userID)
	m.SubmitAnswerCalls.CardIDs = append(m.SubmitAnswerCalls.CardIDs, cardID)
	m.SubmitAnswerCalls.Answers = append(m.SubmitAnswerCalls.Answers, answer)
	m.SubmitAnswerCalls.mu.Unlock()

	if m.SubmitAnswerFn != nil {
		return m.SubmitAnswerFn(ctx, userID, cardID, answer)
	}
	return m.Graded, m.Err
}

// SubmitCount returns how many times SubmitAnswer was called.
func (m *MockCardReviewService) SubmitCount() int {
	m.SubmitAnswerCalls.mu.Lock()
	defer m.SubmitAnswerCalls.mu.Unlock()
	return m.SubmitAnswerCalls.Count
}

// MockOption is a function type that configures a MockCardReviewService
type MockOption func(*MockCardReviewService)

// WithQueue sets the default queue returned from GetQueue
func WithQueue(q *card_review.StudyQueue) MockOption {
	return func(m *MockCardReviewService) {
		m.Queue = q
	}
}

// WithPreview sets the default preview returned from PreviewIntervals
func WithPreview(p srs.Preview) MockOption {
	return func(m *MockCardReviewService) {
		m.Preview = p
	}
}

// WithGraded sets the default result returned from SubmitAnswer
func WithGraded(res *srs.GradedResult) MockOption {
	return func(m *MockCardReviewService) {
		m.Graded = res
	}
}

// WithError sets the default error returned from every method
func WithError(err error) MockOption {
	return func(m *MockCardReviewService) {
		m.Err = err
	}
}

// WithSubmitAnswerFn sets a custom function for SubmitAnswer
func WithSubmitAnswerFn(
	fn func(ctx context.Context, userID, cardID uuid.UUID, answer card_review.ReviewAnswer) (*srs.GradedResult, error),
) MockOption {
	return func(m *MockCardReviewService) {
		m.SubmitAnswerFn = fn
	}
}

// NewMockCardReviewService creates a new MockCardReviewService with the given options
func NewMockCardReviewService(opts ...MockOption) *MockCardReviewService {
	mock := &MockCardReviewService{}
	for _, opt := range opts {
		opt(mock)
	}
	return mock
}
