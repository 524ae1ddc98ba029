package api_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/ankiimport"
	"github.com/phrazzld/scry-decks/internal/api"
	"github.com/phrazzld/scry-decks/internal/config"
	"github.com/phrazzld/scry-decks/internal/domain"
	"github.com/phrazzld/scry-decks/internal/domain/srs"
	"github.com/phrazzld/scry-decks/internal/mocks"
	"github.com/phrazzld/scry-decks/internal/platform/clock"
	"github.com/phrazzld/scry-decks/internal/service/card_review"
	"github.com/phrazzld/scry-decks/internal/service/study"
	"github.com/phrazzld/scry-decks/internal/task"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)

// fakeRunner records submitted tasks in a MockTaskStore without running them.
type fakeRunner struct {
	store *task.MockTaskStore
	err   error

	mu        sync.Mutex
	submitted []task.Task
}

func (r *fakeRunner) Submit(ctx context.Context, t task.Task) error {
	if r.err != nil {
		return r.err
	}
	if err := r.store.SaveTask(ctx, t); err != nil {
		return err
	}
	r.mu.Lock()
	r.submitted = append(r.submitted, t)
	r.mu.Unlock()
	return nil
}

func (r *fakeRunner) Submitted() []task.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]task.Task(nil), r.submitted...)
}

// importerFunc adapts a function to task.Importer; nil imports nothing.
type importerFunc func(ctx context.Context, ownerID uuid.UUID, archive []byte) (*ankiimport.Summary, error)

func (f importerFunc) Import(ctx context.Context, ownerID uuid.UUID, archive []byte) (*ankiimport.Summary, error) {
	if f == nil {
		return &ankiimport.Summary{}, nil
	}
	return f(ctx, ownerID, archive)
}

type testEnv struct {
	userID   uuid.UUID
	clock    *clock.Fake
	jwt      *mocks.MockJWTService
	reviewer *mocks.MockCardReviewService
	decks    *mocks.MockDeckStore
	tasks    *task.MockTaskStore
	runner   *fakeRunner
	sessions *study.Manager
	handler  http.Handler
}

func newTestEnv(t *testing.T, limits api.ImportLimits) *testEnv {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	env := &testEnv{
		userID:   uuid.New(),
		clock:    clock.NewFake(testNow),
		reviewer: mocks.NewMockCardReviewService(),
		decks:    mocks.NewMockDeckStore(),
		tasks:    task.NewMockTaskStore(),
	}
	env.jwt = mocks.NewMockJWTServiceFor(env.userID)
	env.runner = &fakeRunner{store: env.tasks}
	env.sessions = study.NewManager(env.reviewer,
		config.SessionConfig{IdleTimeout: time.Hour, MaxSessions: 10}, log, study.WithClock(env.clock))

	env.handler = api.NewRouter(api.RouterDeps{
		JWT:      env.jwt,
		Cards:    api.NewCardHandler(env.reviewer, log),
		Decks:    api.NewDeckHandler(env.decks, log),
		Sessions: api.NewSessionHandler(env.sessions, log),
		Imports:  api.NewImportHandler(env.runner, env.tasks, importerFunc(nil), limits, env.clock, log),
		Logger:   log,
	})
	return env
}

// do sends an authenticated request.
func (e *testEnv) do(t *testing.T, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer test-token")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// gradeWith makes the reviewer grade cards with the default scheduler at the
// env's fake time, keeping the graded card for the next answer.
func (e *testEnv) gradeWith(t *testing.T, cards ...domain.Card) {
	t.Helper()
	scheduler := srs.NewDefaultService()

	var mu sync.Mutex
	byID := make(map[uuid.UUID]domain.Card, len(cards))
	for _, c := range cards {
		byID[c.ID] = c
	}

	e.reviewer.Queue = &card_review.StudyQueue{Cards: cards}
	e.reviewer.SubmitAnswerFn = func(_ context.Context, userID, cardID uuid.UUID, answer card_review.ReviewAnswer) (*srs.GradedResult, error) {
		mu.Lock()
		defer mu.Unlock()
		card, ok := byID[cardID]
		if !ok {
			return nil, card_review.ErrCardNotFound
		}
		if card.UserID != userID {
			return nil, card_review.ErrCardNotOwned
		}
		graded, err := scheduler.Grade(card, answer.Rating, e.clock.Now())
		if err != nil {
			return nil, err
		}
		byID[cardID] = graded.Card
		return &graded, nil
	}
}

func (e *testEnv) newCard(t *testing.T, front, back string) domain.Card {
	t.Helper()
	c, err := domain.NewCard(e.userID, uuid.New(), front, back, domain.DefaultEase, testNow.Add(-time.Hour))
	require.NoError(t, err)
	return *c
}

func (e *testEnv) reviewCard(t *testing.T, front string, intervalDays int) domain.Card {
	t.Helper()
	c := e.newCard(t, front, front+" back")
	last := testNow.AddDate(0, 0, -intervalDays)
	c.State = domain.StateReview
	c.IntervalDays = intervalDays
	c.LastReviewedAt = &last
	c.DueAt = testNow.Add(-time.Minute)
	c.Reps = 3
	return c
}
