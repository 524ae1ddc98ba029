package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsValidInstant(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"zero", time.Time{}, false},
		{"epoch", time.Unix(0, 0), true},
		{"before epoch", time.Unix(-1, 0), false},
		{"ordinary", time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC), true},
		{"last second of 9999", time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC), true},
		{"year 10000", time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, IsValidInstant(tc.at))
		})
	}
}

func TestAddDaysAndMinutes(t *testing.T) {
	t.Parallel()
	base := time.Date(2025, 2, 27, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC), AddDays(base, 4))
	assert.Equal(t, base.Add(90*time.Second), AddMinutes(base, 1.5))
}

func TestRatingAndState(t *testing.T) {
	t.Parallel()
	for _, r := range Ratings {
		assert.True(t, r.IsValid())
	}
	assert.False(t, Rating("").IsValid())
	assert.True(t, StateRelearning.InLadder())
	assert.False(t, StateReview.InLadder())
	assert.False(t, CardState("suspended").IsValid())
}
