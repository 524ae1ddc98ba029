package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/scry-decks/internal/api/shared"
	"github.com/phrazzld/scry-decks/internal/domain"
	"github.com/phrazzld/scry-decks/internal/platform/logger"
	"github.com/phrazzld/scry-decks/internal/service/card_review"
	"github.com/phrazzld/scry-decks/internal/service/study"
)

// MaxSessionWait caps how long GET /sessions/{id}/next may block.
const MaxSessionWait = 60 * time.Second

// SessionHandler drives in-memory study sessions.
type SessionHandler struct {
	sessions *study.Manager
	logger   *slog.Logger
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(sessions *study.Manager, logger *slog.Logger) *SessionHandler {
	if sessions == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("sessions cannot be nil for SessionHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{sessions: sessions, logger: logger.With(slog.String("component", "session_handler"))}
}

// StartSession handles POST /sessions. The body is optional.
func (h *SessionHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	var req StartSessionRequest
	if r.ContentLength != 0 {
		if err := shared.DecodeJSON(w, r, &req); err != nil && !errors.Is(err, shared.ErrEmptyBody) {
			shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
			return
		}
		if err := shared.ValidateRequest(req); err != nil {
			shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
			return
		}
	}

	session, err := h.sessions.Start(r.Context(), userID, card_review.QueueOptions{DeckIDs: req.deckUUIDs()})
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	log.Info("study session started",
		slog.String("user_id", userID.String()),
		slog.String("session_id", session.ID().String()),
		slog.Int("cards", session.Progress().Remaining))
	shared.RespondWithJSON(w, r, http.StatusCreated, sessionToResponse(session))
}

// Next handles GET /sessions/{id}/next. With ?wait=<duration> and no card
// ready, it blocks until a parked card comes due or the wait elapses.
func (h *SessionHandler) Next(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	session, ok := h.session(w, r, log)
	if !ok {
		return
	}

	var wait time.Duration
	if raw := r.URL.Query().Get("wait"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			HandleAPIError(w, r, domain.NewValidationError("wait", "must be a non-negative duration", domain.ErrValidation), "Invalid wait")
			return
		}
		wait = min(d, MaxSessionWait)
	}

	session.AdmitDue()
	if _, ready := session.Current(); !ready && wait > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), wait)
		_, err := session.Wait(ctx)
		cancel()
		switch {
		case err == nil, errors.Is(err, context.DeadlineExceeded):
		case errors.Is(err, context.Canceled):
			// Client went away.
			return
		default:
			HandleAPIError(w, r, err, "")
			return
		}
	}

	shared.RespondWithJSON(w, r, http.StatusOK, sessionToResponse(session))
}

// Answer handles POST /sessions/{id}/answer, grading the current prompt.
func (h *SessionHandler) Answer(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	session, ok := h.session(w, r, log)
	if !ok {
		return
	}

	var req AnswerRequest
	if !decodeAndValidate(w, r, &req, log) {
		return
	}

	result, err := session.Answer(r.Context(), domain.Rating(req.Rating), req.ElapsedMs)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, SessionAnswerResponse{
		Card:      cardToResponse(result.Graded.Card),
		Placement: result.Placement.String(),
		Session:   sessionToResponse(session),
	})
}

// EndSession handles DELETE /sessions/{id}.
func (h *SessionHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, sessionID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}
	if err := h.sessions.End(userID, sessionID); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request, log *slog.Logger) (*study.Session, bool) {
	userID, sessionID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return nil, false
	}
	session, err := h.sessions.Get(userID, sessionID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return nil, false
	}
	return session, true
}
