package study

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/domain"
	"github.com/phrazzld/scry-decks/internal/domain/queue"
	"github.com/phrazzld/scry-decks/internal/domain/srs"
	"github.com/phrazzld/scry-decks/internal/platform/clock"
	"github.com/phrazzld/scry-decks/internal/platform/logger"
	"github.com/phrazzld/scry-decks/internal/service/card_review"
)

var (
	// ErrSessionClosed is returned by operations on a closed session.
	ErrSessionClosed = errors.New("study session is closed")

	// ErrNoCurrentCard is returned by Answer when the active queue is empty.
	ErrNoCurrentCard = errors.New("no card to answer")
)

// Orientation says which side of a card is shown as the question.
type Orientation string

// Supported orientations
const (
	Forward Orientation = "forward"
	Reverse Orientation = "reverse"
)

// Prompt is the card currently presented to the user.
type Prompt struct {
	Card        domain.Card `json:"card"`
	Orientation Orientation `json:"orientation"`
	Question    string      `json:"question"`
	Answer      string      `json:"answer"`
}

// AnswerResult reports the grading of one answer and where the card went.
type AnswerResult struct {
	Graded    *srs.GradedResult
	Placement queue.Placement
}

// Progress summarises a session.
type Progress struct {
	Remaining  int        `json:"remaining"`
	Parked     int        `json:"parked"`
	Reviewed   int        `json:"reviewed"`
	NextParked *time.Time `json:"next_parked,omitempty"`
}

// Session is one sitting of study. It owns the active queue and the set of
// cards parked until their learning step elapses. It is safe for concurrent
// use; answers are applied one at a time.
type Session struct {
	id       uuid.UUID
	userID   uuid.UUID
	reviewer card_review.CardReviewService
	clock    clock.Clock
	logger   *slog.Logger

	mu          sync.Mutex
	rng         *rand.Rand
	active      []domain.Card
	parked      []domain.Card // ordered by DueAt
	reviewed    int
	headID      uuid.UUID
	orientation Orientation

	done      chan struct{}
	closeOnce sync.Once
}

// NewSession creates a session over cards, which should already be in study
// order. rng picks the orientation of reversible cards; nil means a randomly
// seeded source.
func NewSession(
	userID uuid.UUID,
	cards []domain.Card,
	reviewer card_review.CardReviewService,
	clk clock.Clock,
	rng *rand.Rand,
	log *slog.Logger,
) *Session {
	if reviewer == nil {
		panic("reviewer cannot be nil")
	}
	if clk == nil {
		clk = clock.New()
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if log == nil {
		log = slog.Default()
	}

	id := uuid.New()
	return &Session{
		id:       id,
		userID:   userID,
		reviewer: reviewer,
		clock:    clk,
		logger:   log.With(slog.String("component", "study_session"), slog.String("session_id", id.String())),
		rng:      rng,
		active:   slices.Clone(cards),
		done:     make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// UserID returns the owner of the session.
func (s *Session) UserID() uuid.UUID { return s.userID }

// Current returns the card at the head of the active queue. The second
// result is false when the active queue is empty; parked cards may still be
// waiting.
func (s *Session) Current() (Prompt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLocked()
}

func (s *Session) currentLocked() (Prompt, bool) {
	if len(s.active) == 0 {
		return Prompt{}, false
	}

	card := s.active[0]
	if card.ID != s.headID {
		s.headID = card.ID
		s.orientation = Forward
		if card.Reversible && s.rng.Float64() < 0.5 {
			s.orientation = Reverse
		}
	}

	p := Prompt{Card: card, Orientation: s.orientation, Question: card.Front, Answer: card.Back}
	if s.orientation == Reverse {
		p.Question, p.Answer = card.Back, card.Front
	}
	return p, true
}

// Answer grades the current card and places it: a card due again within
// queue.RequeueHorizon is reinserted a few positions ahead, a card due
// later is parked, anything else leaves the session.
func (s *Session) Answer(ctx context.Context, rating domain.Rating, elapsedMs int64) (*AnswerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isClosed() {
		return nil, ErrSessionClosed
	}
	if len(s.active) == 0 {
		return nil, ErrNoCurrentCard
	}

	card := s.active[0]
	graded, err := s.reviewer.SubmitAnswer(ctx, s.userID, card.ID, card_review.ReviewAnswer{
		Rating:    rating,
		ElapsedMs: elapsedMs,
	})
	if err != nil {
		return nil, err
	}

	s.reviewed++
	rest := s.active[1:]
	placement := queue.Classify(graded.Card, s.clock.Now())

	switch placement {
	case queue.PlacementRequeue:
		s.active = slices.Insert(rest, queue.RequeuePosition(len(rest)), graded.Card)
	case queue.PlacementPark:
		s.active = rest
		s.park(graded.Card)
	default:
		s.active = rest
	}

	logger.FromContextOrDefault(ctx, s.logger).Debug("card answered",
		slog.String("card_id", card.ID.String()),
		slog.String("rating", string(rating)),
		slog.String("placement", placement.String()),
		slog.Int("remaining", len(s.active)),
		slog.Int("parked", len(s.parked)))

	return &AnswerResult{Graded: graded, Placement: placement}, nil
}

// park must be called with the lock held.
func (s *Session) park(card domain.Card) {
	i, _ := slices.BinarySearchFunc(s.parked, card, func(a, b domain.Card) int {
		// Equal due times keep arrival order.
		if a.DueAt.After(b.DueAt) {
			return 1
		}
		return -1
	})
	s.parked = slices.Insert(s.parked, i, card)
}

// NextParkedDue returns the earliest due time in the parked set.
func (s *Session) NextParkedDue() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.parked) == 0 {
		return time.Time{}, false
	}
	return s.parked[0].DueAt, true
}

// Admit moves every parked card due at or before now to the end of the
// active queue, earliest first, and returns how many were moved.
func (s *Session) Admit(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.admitLocked(now)
}

// AdmitDue admits the parked cards that are due by the session's clock.
func (s *Session) AdmitDue() int {
	return s.Admit(s.clock.Now())
}

func (s *Session) admitLocked(now time.Time) int {
	n := 0
	for n < len(s.parked) && !s.parked[n].DueAt.After(now) {
		n++
	}
	if n == 0 {
		return 0
	}
	s.active = append(s.active, s.parked[:n]...)
	s.parked = slices.Delete(s.parked, 0, n)
	return n
}

// Wait blocks until the earliest parked card is due, admits the cards that
// are due and returns how many were admitted. It returns immediately with
// zero when nothing is parked. Cancelling ctx or closing the session ends the
// wait early.
func (s *Session) Wait(ctx context.Context) (int, error) {
	for {
		s.mu.Lock()
		if s.isClosed() {
			s.mu.Unlock()
			return 0, ErrSessionClosed
		}
		if len(s.parked) == 0 {
			s.mu.Unlock()
			return 0, nil
		}
		now := s.clock.Now()
		if n := s.admitLocked(now); n > 0 {
			s.mu.Unlock()
			return n, nil
		}
		delay := s.parked[0].DueAt.Sub(now)
		s.mu.Unlock()

		timer := s.clock.NewTimer(delay)
		select {
		case <-timer.C():
		case <-ctx.Done():
			timer.Stop()
			return 0, ctx.Err()
		case <-s.done:
			timer.Stop()
			return 0, ErrSessionClosed
		}
	}
}

// Progress reports the session's counters.
func (s *Session) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := Progress{Remaining: len(s.active), Parked: len(s.parked), Reviewed: s.reviewed}
	if len(s.parked) > 0 {
		due := s.parked[0].DueAt
		p.NextParked = &due
	}
	return p
}

// Finished reports whether both the active queue and the parked set are empty.
func (s *Session) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active) == 0 && len(s.parked) == 0
}

// Close ends the session and releases any goroutine blocked in Wait.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.logger.Debug("study session closed", slog.Int("reviewed", s.reviewedCount()))
	})
}

func (s *Session) reviewedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reviewed
}

func (s *Session) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
