package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/api/shared"
	"github.com/phrazzld/scry-decks/internal/domain"
	"github.com/phrazzld/scry-decks/internal/platform/logger"
	"github.com/phrazzld/scry-decks/internal/store"
)

// DeckReader is the part of store.DeckStore the deck endpoints need.
type DeckReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Deck, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Deck, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

var _ DeckReader = (store.DeckStore)(nil)

// DeckHandler handles deck requests.
type DeckHandler struct {
	decks  DeckReader
	logger *slog.Logger
}

// NewDeckHandler creates a new DeckHandler
func NewDeckHandler(decks DeckReader, logger *slog.Logger) *DeckHandler {
	if decks == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("decks cannot be nil for DeckHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DeckHandler{decks: decks, logger: logger.With(slog.String("component", "deck_handler"))}
}

// ListDecks handles GET /decks. Each deck carries its full "::" path.
func (h *DeckHandler) ListDecks(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	decks, err := h.decks.ListByUser(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	byID := make(map[uuid.UUID]*domain.Deck, len(decks))
	for _, d := range decks {
		byID[d.ID] = d
	}

	resp := DeckListResponse{Decks: make([]DeckResponse, 0, len(decks))}
	for _, d := range decks {
		path, err := domain.DeckPath(byID, d.ID)
		if err != nil {
			// A broken parent chain still lists the deck under its own name.
			log.Warn("cannot resolve deck path",
				slog.String("deck_id", d.ID.String()),
				slog.String("error", err.Error()))
			path = d.Name
		}
		resp.Decks = append(resp.Decks, DeckResponse{
			ID:        d.ID,
			Name:      d.Name,
			Path:      path,
			ParentID:  d.ParentID,
			CreatedAt: d.CreatedAt,
		})
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// DeleteDeck handles DELETE /decks/{id}. Child decks and their cards go with it.
func (h *DeckHandler) DeleteDeck(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, deckID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	deck, err := h.decks.GetByID(r.Context(), deckID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if deck.UserID != userID {
		// Someone else's deck is reported as missing.
		HandleAPIError(w, r, store.ErrDeckNotFound, "")
		return
	}

	if err := h.decks.Delete(r.Context(), deckID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			HandleAPIError(w, r, store.ErrDeckNotFound, "")
			return
		}
		HandleAPIError(w, r, err, "")
		return
	}

	log.Info("deck deleted",
		slog.String("user_id", userID.String()),
		slog.String("deck_id", deckID.String()))
	w.WriteHeader(http.StatusNoContent)
}
