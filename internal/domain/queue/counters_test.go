package queue

import (
	"testing"
	"time"

	"github.com/phrazzld/scry-decks/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestCountersFromLogs(t *testing.T) {
	t.Parallel()
	since := StartOfDay(now, time.UTC)

	logs := []domain.ReviewLog{
		{PreviousState: domain.StateNew, ReviewedAt: now},
		{PreviousState: domain.StateNew, ReviewedAt: since},
		{PreviousState: domain.StateReview, ReviewedAt: now},
		{PreviousState: domain.StateLearning, ReviewedAt: now},
		{PreviousState: domain.StateRelearning, ReviewedAt: now},
		{PreviousState: domain.StateReview, ReviewedAt: since.Add(-time.Second)},
	}

	assert.Equal(t, DailyCounters{NewDone: 2, ReviewsDone: 1}, CountersFromLogs(logs, since))
}

func TestStartOfDay(t *testing.T) {
	t.Parallel()
	tokyo := time.FixedZone("JST", 9*60*60)

	at := time.Date(2025, 5, 2, 20, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC), StartOfDay(at, nil))

	// 20:30 UTC is already 05:30 the next day in Tokyo.
	got := StartOfDay(at, tokyo)
	assert.True(t, got.Equal(time.Date(2025, 5, 3, 0, 0, 0, 0, tokyo)))
}
