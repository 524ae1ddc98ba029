package study

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/cache"
	"github.com/phrazzld/scry-decks/internal/config"
	"github.com/phrazzld/scry-decks/internal/platform/clock"
	"github.com/phrazzld/scry-decks/internal/platform/logger"
	"github.com/phrazzld/scry-decks/internal/service/card_review"
)

// ErrSessionNotFound is returned when a session does not exist, has expired,
// or belongs to another user.
var ErrSessionNotFound = errors.New("study session not found")

// Manager keeps the live study sessions in memory. Sessions idle for longer
// than the configured timeout expire.
type Manager struct {
	reviewer card_review.CardReviewService
	clock    clock.Clock
	sessions *cache.TTL[uuid.UUID, *Session]
	newRand  func() *rand.Rand
	logger   *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClock sets the clock used for session expiry and parking waits.
func WithClock(c clock.Clock) ManagerOption {
	return func(m *Manager) { m.clock = c }
}

// WithRandSource sets the factory that gives each new session its random source.
func WithRandSource(newRand func() *rand.Rand) ManagerOption {
	return func(m *Manager) { m.newRand = newRand }
}

// NewManager creates a session manager.
func NewManager(
	reviewer card_review.CardReviewService,
	cfg config.SessionConfig,
	log *slog.Logger,
	opts ...ManagerOption,
) *Manager {
	if reviewer == nil {
		panic("reviewer cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	m := &Manager{
		reviewer: reviewer,
		clock:    clock.New(),
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
		logger: log.With(slog.String("component", "study_manager")),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.sessions = cache.NewTTL[uuid.UUID, *Session](m.clock, cfg.IdleTimeout, cfg.MaxSessions)
	return m
}

// Start builds the user's study queue and opens a session over it.
func (m *Manager) Start(ctx context.Context, userID uuid.UUID, opts card_review.QueueOptions) (*Session, error) {
	q, err := m.reviewer.GetQueue(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to build study queue: %w", err)
	}

	s := NewSession(userID, q.Cards, m.reviewer, m.clock, m.newRand(), m.logger)
	m.sessions.Set(s.ID(), s)

	logger.FromContextOrDefault(ctx, m.logger).Info("study session started",
		slog.String("session_id", s.ID().String()),
		slog.String("user_id", userID.String()),
		slog.Int("cards", len(q.Cards)))
	return s, nil
}

// Get returns the user's session and refreshes its idle timer.
func (m *Manager) Get(userID, sessionID uuid.UUID) (*Session, error) {
	s, ok := m.sessions.Get(sessionID)
	if !ok || s.UserID() != userID {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// End closes and forgets the user's session.
func (m *Manager) End(userID, sessionID uuid.UUID) error {
	s, err := m.Get(userID, sessionID)
	if err != nil {
		return err
	}
	m.sessions.Delete(sessionID)
	s.Close()
	return nil
}

// Len returns the number of sessions held, including expired ones not yet swept.
func (m *Manager) Len() int {
	return m.sessions.Len()
}

// Sweep closes and drops every expired session and returns how many there were.
func (m *Manager) Sweep() int {
	expired := m.sessions.Sweep()
	for _, s := range expired {
		s.Close()
	}
	if len(expired) > 0 {
		m.logger.Debug("expired study sessions swept", slog.Int("count", len(expired)))
	}
	return len(expired)
}

// Run sweeps expired sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	for {
		timer := m.clock.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C():
			m.Sweep()
		}
	}
}
