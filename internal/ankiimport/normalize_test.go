package ankiimport

import (
	"testing"
	"time"

	"github.com/phrazzld/scry-decks/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestStateFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		queue, ctype  int
		wantState     domain.CardState
		wantSuspended bool
		wantKnown     bool
	}{
		{"new", queueNew, typeNew, domain.StateNew, false, true},
		{"learning", queueLearning, typeLearning, domain.StateLearning, false, true},
		{"day learning", queueDayLearning, typeRelearning, domain.StateLearning, false, true},
		{"review", queueReview, typeReview, domain.StateReview, false, true},
		{"suspended new", queueSuspended, typeNew, domain.StateNew, true, true},
		{"suspended review", queueSuspended, typeReview, domain.StateReview, true, true},
		{"buried new", queueBuriedSched, typeNew, domain.StateNew, false, true},
		{"buried learning", queueBuriedManual, typeLearning, domain.StateLearning, false, true},
		{"buried relearning", queueBuriedSched, typeRelearning, domain.StateLearning, false, true},
		{"buried review", queueBuriedSched, typeReview, domain.StateReview, false, true},
		{"unknown queue", 7, typeReview, domain.StateNew, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			state, suspended, known := stateFor(tt.queue, tt.ctype)
			assert.Equal(t, tt.wantState, state)
			assert.Equal(t, tt.wantSuspended, suspended)
			assert.Equal(t, tt.wantKnown, known)
		})
	}
}

func TestDueFor(t *testing.T) {
	t.Parallel()

	created := time.Unix(testCrt, 0).UTC()
	now := time.Date(2025, time.January, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name         string
		queue        int
		due          int64
		want         time.Time
		wantFallback bool
	}{
		{"new uses now", queueNew, 12345, now, false},
		{"learning timestamp", queueLearning, 1_735_000_000, time.Unix(1_735_000_000, 0).UTC(), false},
		{"learning implausible", queueLearning, 500, now, true},
		{"review day offset", queueReview, 5, time.UnixMilli(1_700_000_000_000 + 5*86_400_000).UTC(), false},
		{"day learning offset", queueDayLearning, 1, created.Add(24 * time.Hour), false},
		{"suspended offset", queueSuspended, 2, created.Add(48 * time.Hour), false},
		{"offset before 1970", queueReview, -30_000, now, true},
		{"offset overflow", queueReview, 1 << 60, now, true},
		{"unknown queue", 9, 5, now, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, fellBack := dueFor(tt.queue, tt.due, created, now)
			assert.True(t, tt.want.Equal(got), "want %s got %s", tt.want, got)
			assert.Equal(t, tt.wantFallback, fellBack)
		})
	}
}

func TestEaseFor(t *testing.T) {
	t.Parallel()

	review := domain.StateReview
	assert.InDelta(t, 2.5, easeFor(review, 2500, domain.DefaultEase), 1e-9)
	assert.InDelta(t, 1.3, easeFor(review, 1300, domain.DefaultEase), 1e-9)
	assert.InDelta(t, 5.0, easeFor(review, 5000, domain.DefaultEase), 1e-9)
	assert.InDelta(t, 2.75, easeFor(review, 2750, domain.DefaultEase), 1e-9)
	assert.InDelta(t, domain.DefaultEase, easeFor(review, 0, domain.DefaultEase), 1e-9)
	assert.InDelta(t, domain.DefaultEase, easeFor(review, 1299, domain.DefaultEase), 1e-9)
	assert.InDelta(t, domain.DefaultEase, easeFor(review, 5001, domain.DefaultEase), 1e-9)
	assert.InDelta(t, domain.DefaultEase, easeFor(review, -2500, domain.DefaultEase), 1e-9)

	// A configured starting ease replaces the fallback and seeds new cards.
	assert.InDelta(t, 2.3, easeFor(review, 0, 2.3), 1e-9)
	assert.InDelta(t, 2.75, easeFor(review, 2750, 2.3), 1e-9)
	assert.InDelta(t, 2.3, easeFor(domain.StateNew, 2750, 2.3), 1e-9)
	assert.InDelta(t, 2.75, easeFor(domain.StateLearning, 2750, 2.3), 1e-9)
}

func TestIntervalFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, intervalFor(domain.StateNew, 30))
	assert.Equal(t, 0, intervalFor(domain.StateLearning, -600))
	assert.Equal(t, 30, intervalFor(domain.StateReview, 30))
}

func TestCreatedFor(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.UnixMilli(1_600_000_000_000).UTC(), createdFor(1_600_000_000_000, now))
	assert.Equal(t, now, createdFor(42, now))
	assert.Equal(t, now, createdFor(now.Add(time.Hour).UnixMilli(), now))
}
