package api

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/api/shared"
	"github.com/phrazzld/scry-decks/internal/domain"
	"github.com/phrazzld/scry-decks/internal/platform/logger"
	"github.com/phrazzld/scry-decks/internal/service/card_review"
)

// CardHandler handles study queue and card review requests.
type CardHandler struct {
	cardReviewService card_review.CardReviewService
	logger            *slog.Logger
}

// NewCardHandler creates a new CardHandler
func NewCardHandler(
	cardReviewService card_review.CardReviewService,
	logger *slog.Logger,
) *CardHandler {
	if cardReviewService == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("cardReviewService cannot be nil for CardHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for CardHandler")
	}

	return &CardHandler{
		cardReviewService: cardReviewService,
		logger:            logger.With(slog.String("component", "card_handler")),
	}
}

// GetQueue handles GET /queue. Repeated deck_id query parameters restrict
// the queue to those decks.
func (h *CardHandler) GetQueue(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	var opts card_review.QueueOptions
	for _, raw := range r.URL.Query()["deck_id"] {
		id, err := uuid.Parse(raw)
		if err != nil {
			HandleAPIError(w, r, domain.NewValidationError("deck_id", "has invalid format", domain.ErrInvalidID), "Invalid deck_id")
			return
		}
		opts.DeckIDs = append(opts.DeckIDs, id)
	}

	q, err := h.cardReviewService.GetQueue(r.Context(), userID, opts)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	resp := QueueResponse{Cards: make([]CardResponse, 0, len(q.Cards)), Counters: q.Counters}
	for _, c := range q.Cards {
		resp.Cards = append(resp.Cards, cardToResponse(c))
	}

	log.Debug("built study queue",
		slog.String("user_id", userID.String()),
		slog.Int("cards", len(resp.Cards)))
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// PreviewIntervals handles GET /cards/{id}/preview.
func (h *CardHandler) PreviewIntervals(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, cardID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	preview, err := h.cardReviewService.PreviewIntervals(r.Context(), userID, cardID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, PreviewResponse{
		CardID: cardID,
		Again:  preview.Again,
		Hard:   preview.Hard,
		Good:   preview.Good,
		Easy:   preview.Easy,
	})
}

// SubmitAnswer handles POST /cards/{id}/answer
// It grades the card and persists the new schedule together with a review log entry.
func (h *CardHandler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, cardID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	var req AnswerRequest
	if !decodeAndValidate(w, r, &req, log) {
		return
	}

	graded, err := h.cardReviewService.SubmitAnswer(r.Context(), userID, cardID, card_review.ReviewAnswer{
		Rating:    domain.Rating(req.Rating),
		ElapsedMs: req.ElapsedMs,
	})
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	log.Debug("answer submitted",
		slog.String("user_id", userID.String()),
		slog.String("card_id", cardID.String()),
		slog.String("rating", req.Rating),
		slog.Int("interval_days", graded.Card.IntervalDays))
	shared.RespondWithJSON(w, r, http.StatusOK, gradedToResponse(graded))
}
