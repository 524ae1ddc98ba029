package card_review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/domain"
	"github.com/phrazzld/scry-decks/internal/domain/queue"
	"github.com/phrazzld/scry-decks/internal/domain/srs"
	"github.com/phrazzld/scry-decks/internal/platform/clock"
	"github.com/phrazzld/scry-decks/internal/platform/logger"
	"github.com/phrazzld/scry-decks/internal/store"
)

// maxSubmitAttempts bounds the optimistic-concurrency retries of SubmitAnswer.
const maxSubmitAttempts = 3

// Verify interface compliance at compile time
var _ CardReviewService = (*cardReviewServiceImpl)(nil)

// Deps are the collaborators of the card review service.
type Deps struct {
	DB        store.Beginner
	Cards     store.CardStore
	Logs      store.ReviewLogStore
	Scheduler srs.Service
	Clock     clock.Clock
	// Location decides where the study day starts; nil means UTC.
	Location *time.Location
	Logger   *slog.Logger
}

// cardReviewServiceImpl implements the CardReviewService interface.
type cardReviewServiceImpl struct {
	db        store.Beginner
	cards     store.CardStore
	logs      store.ReviewLogStore
	scheduler srs.Service
	clock     clock.Clock
	location  *time.Location
	logger    *slog.Logger
}

// NewCardReviewService creates a new CardReviewService implementation.
// It panics when a required collaborator is missing.
func NewCardReviewService(deps Deps) CardReviewService {
	if deps.DB == nil {
		panic("db cannot be nil")
	}
	if deps.Cards == nil {
		panic("card store cannot be nil")
	}
	if deps.Logs == nil {
		panic("review log store cannot be nil")
	}
	if deps.Scheduler == nil {
		panic("scheduler cannot be nil")
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &cardReviewServiceImpl{
		db:        deps.DB,
		cards:     deps.Cards,
		logs:      deps.Logs,
		scheduler: deps.Scheduler,
		clock:     deps.Clock,
		location:  deps.Location,
		logger:    deps.Logger.With(slog.String("component", "card_review_service")),
	}
}

// GetQueue implements CardReviewService.GetQueue.
func (s *cardReviewServiceImpl) GetQueue(
	ctx context.Context,
	userID uuid.UUID,
	opts QueueOptions,
) (*StudyQueue, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	now := s.clock.Now()
	since := queue.StartOfDay(now, s.location)

	newDone, err := s.logs.CountSince(ctx, userID, since, domain.StateNew)
	if err != nil {
		return nil, NewGetQueueError("failed to count new cards studied today", err)
	}
	reviewsDone, err := s.logs.CountSince(ctx, userID, since, domain.StateReview)
	if err != nil {
		return nil, NewGetQueueError("failed to count reviews done today", err)
	}
	counters := queue.DailyCounters{NewDone: newDone, ReviewsDone: reviewsDone}

	candidates, err := s.cards.FindDue(ctx, store.CardFilter{
		UserID:        userID,
		DeckIDs:       opts.DeckIDs,
		DueAtOrBefore: now,
	})
	if err != nil {
		return nil, NewGetQueueError("failed to load due cards", err)
	}

	cards := queue.BuildQueue(candidates, counters, s.scheduler.Settings(), now)
	log.Debug("study queue built",
		slog.String("user_id", userID.String()),
		slog.Int("candidates", len(candidates)),
		slog.Int("queued", len(cards)),
		slog.Int("new_done", newDone),
		slog.Int("reviews_done", reviewsDone))

	if cards == nil {
		cards = []domain.Card{}
	}
	return &StudyQueue{Cards: cards, Counters: counters}, nil
}

// PreviewIntervals implements CardReviewService.PreviewIntervals.
func (s *cardReviewServiceImpl) PreviewIntervals(ctx context.Context, userID, cardID uuid.UUID) (srs.Preview, error) {
	card, err := s.ownedCard(ctx, s.cards, userID, cardID)
	if err != nil {
		return srs.Preview{}, err
	}

	preview, err := s.scheduler.PreviewIntervals(*card, s.clock.Now())
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("preview produced an invalid card",
			slog.String("card_id", cardID.String()),
			slog.String("error", err.Error()))
		return srs.Preview{}, NewPreviewError("failed to preview intervals", err)
	}
	return preview, nil
}

// SubmitAnswer implements CardReviewService.SubmitAnswer.
func (s *cardReviewServiceImpl) SubmitAnswer(
	ctx context.Context,
	userID uuid.UUID,
	cardID uuid.UUID,
	answer ReviewAnswer,
) (*srs.GradedResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		slog.String("user_id", userID.String()),
		slog.String("card_id", cardID.String()))

	if !answer.Rating.IsValid() || answer.ElapsedMs < 0 {
		log.Warn("invalid review answer", slog.String("rating", string(answer.Rating)))
		return nil, ErrInvalidAnswer
	}

	for attempt := 1; attempt <= maxSubmitAttempts; attempt++ {
		result, err := s.submitOnce(ctx, userID, cardID, answer)
		if err == nil {
			log.Debug("review recorded",
				slog.String("rating", string(answer.Rating)),
				slog.String("state", string(result.Card.State)),
				slog.Int("interval", result.Card.IntervalDays),
				slog.Time("due_at", result.Card.DueAt),
				slog.Int("attempt", attempt))
			return result, nil
		}

		if errors.Is(err, store.ErrConflict) {
			log.Info("concurrent review detected, retrying", slog.Int("attempt", attempt))
			continue
		}

		if errors.Is(err, ErrCardNotFound) ||
			errors.Is(err, ErrCardNotOwned) ||
			errors.Is(err, ErrCardSuspended) {
			return nil, err
		}

		log.Error("failed to submit answer", slog.String("error", err.Error()))
		return nil, NewSubmitAnswerError("failed to record review", err)
	}

	log.Warn("giving up after repeated concurrent reviews", slog.Int("attempts", maxSubmitAttempts))
	return nil, ErrConcurrentReview
}

// submitOnce runs one read-grade-write cycle in its own transaction.
func (s *cardReviewServiceImpl) submitOnce(
	ctx context.Context,
	userID, cardID uuid.UUID,
	answer ReviewAnswer,
) (*srs.GradedResult, error) {
	var result *srs.GradedResult

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		cards := s.cards.WithTx(tx)
		logs := s.logs.WithTx(tx)

		card, err := s.ownedCard(ctx, cards, userID, cardID)
		if err != nil {
			return err
		}
		if card.Suspended {
			return ErrCardSuspended
		}

		graded, err := s.scheduler.Grade(*card, answer.Rating, s.clock.Now())
		if err != nil {
			return fmt.Errorf("failed to grade card: %w", err)
		}
		graded.Log.ElapsedMs = answer.ElapsedMs

		if err := cards.Update(ctx, &graded.Card); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrCardNotFound
			}
			return err
		}
		if err := logs.Append(ctx, &graded.Log); err != nil {
			return fmt.Errorf("failed to append review log: %w", err)
		}

		result = &graded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ownedCard loads a card and checks that userID owns it.
func (s *cardReviewServiceImpl) ownedCard(
	ctx context.Context,
	cards store.CardStore,
	userID, cardID uuid.UUID,
) (*domain.Card, error) {
	card, err := cards.GetByID(ctx, cardID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	if card.UserID != userID {
		logger.FromContextOrDefault(ctx, s.logger).Warn("user does not own card",
			slog.String("user_id", userID.String()),
			slog.String("card_id", cardID.String()))
		return nil, ErrCardNotOwned
	}
	return card, nil
}
