package srs

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/domain"
)

// Fixed ease adjustments applied to Review-state gradings.
const (
	lapseEasePenalty = 0.20
	easyEaseBonus    = 0.15
)

// ErrInvariantViolation is returned when a grading would produce a card that
// fails domain validation. It indicates broken settings or a corrupt input card.
var ErrInvariantViolation = errors.New("scheduler produced an invalid card")

// GradedResult is the outcome of grading one card.
type GradedResult struct {
	Card domain.Card
	Log  domain.ReviewLog
}

// IntervalPreview describes what a single rating would do to a card.
type IntervalPreview struct {
	State        domain.CardState `json:"state"`
	IntervalDays int              `json:"interval_days"`
	DueAt        time.Time        `json:"due_at"`
}

// Preview holds the hypothetical outcome of each of the four ratings.
type Preview struct {
	Again IntervalPreview `json:"again"`
	Hard  IntervalPreview `json:"hard"`
	Good  IntervalPreview `json:"good"`
	Easy  IntervalPreview `json:"easy"`
}

// Grade applies a rating to a card and returns the updated card together with
// the review log entry describing the transition.
//
// The input card is never modified. Missing settings fall back to
// DefaultSettings. The returned card always passes domain.Card.Validate; if
// it would not, Grade returns an error wrapping ErrInvariantViolation instead.
//
// Callers are expected to filter out suspended cards beforehand. A rating
// outside again/hard/good/easy returns a *domain.ValidationError.
func Grade(card domain.Card, rating domain.Rating, settings Settings, now time.Time) (GradedResult, error) {
	if !rating.IsValid() {
		return GradedResult{}, domain.NewValidationError("rating", fmt.Sprintf("%q is not a known rating", rating), domain.ErrInvalidRating)
	}

	now = now.UTC()
	next := applyRating(card, rating, settings.WithDefaults(), now)
	if err := next.Validate(); err != nil {
		return GradedResult{}, fmt.Errorf("%w: %v", ErrInvariantViolation, err)
	}

	log := domain.ReviewLog{
		ID:               uuid.New(),
		CardID:           card.ID,
		UserID:           card.UserID,
		Rating:           rating,
		ReviewedAt:       now,
		PreviousState:    card.State,
		PreviousInterval: card.IntervalDays,
		NewInterval:      next.IntervalDays,
		NewDueAt:         next.DueAt,
	}

	return GradedResult{Card: next, Log: log}, nil
}

// PreviewIntervals reports the state, interval and due date each rating would
// produce. It does not modify card and returns identical results for
// identical inputs.
func PreviewIntervals(card domain.Card, settings Settings, now time.Time) (Preview, error) {
	now = now.UTC()
	settings = settings.WithDefaults()

	var out Preview
	targets := map[domain.Rating]*IntervalPreview{
		domain.RatingAgain: &out.Again,
		domain.RatingHard:  &out.Hard,
		domain.RatingGood:  &out.Good,
		domain.RatingEasy:  &out.Easy,
	}
	for _, rating := range domain.Ratings {
		next := applyRating(card, rating, settings, now)
		if err := next.Validate(); err != nil {
			return Preview{}, fmt.Errorf("%w: preview %s: %v", ErrInvariantViolation, rating, err)
		}
		*targets[rating] = IntervalPreview{
			State:        next.State,
			IntervalDays: next.IntervalDays,
			DueAt:        next.DueAt,
		}
	}
	return out, nil
}

// applyRating computes the next card state. It works on a copy of card.
func applyRating(card domain.Card, rating domain.Rating, s Settings, now time.Time) domain.Card {
	next := card.Clone()
	next.Reps++
	reviewed := now
	next.LastReviewedAt = &reviewed
	next.UpdatedAt = now

	switch card.State {
	case domain.StateNew:
		gradeNew(&next, rating, s, now)
	case domain.StateLearning:
		gradeLadder(&next, rating, s.LearningSteps, s, now, func(easy bool) {
			interval := s.GraduatingIntervalDays
			if easy {
				interval = s.EasyIntervalDays
			}
			graduate(&next, interval, s, now)
		})
	case domain.StateRelearning:
		gradeLadder(&next, rating, s.RelearningSteps, s, now, func(bool) {
			// Back to Review on the interval already reduced by the lapse.
			graduate(&next, max(next.IntervalDays, 1), s, now)
		})
	case domain.StateReview:
		gradeReview(&next, rating, s, now)
	}

	return next
}

// gradeNew handles the first answer on a card. With a step ladder every
// rating enters Learning at step 0; "again" uses the again delay instead of
// the first step. Without a ladder good and hard graduate on the graduating
// interval and easy on the easy interval.
func gradeNew(c *domain.Card, rating domain.Rating, s Settings, now time.Time) {
	c.LearningStepIndex = 0
	c.IntervalDays = 0

	if rating == domain.RatingAgain {
		c.State = domain.StateLearning
		c.DueAt = domain.AddMinutes(now, s.AgainDelayMinutes)
		return
	}

	if len(s.LearningSteps) == 0 {
		interval := s.GraduatingIntervalDays
		if rating == domain.RatingEasy {
			interval = s.EasyIntervalDays
		}
		graduate(c, interval, s, now)
		return
	}

	c.State = domain.StateLearning
	c.DueAt = domain.AddMinutes(now, s.LearningSteps[0])
}

// gradeLadder walks a learning or relearning step ladder. graduateFn is
// invoked when the card leaves the ladder; its argument reports whether the
// exit was through "easy".
func gradeLadder(c *domain.Card, rating domain.Rating, steps []float64, s Settings, now time.Time, graduateFn func(easy bool)) {
	if len(steps) == 0 {
		if rating == domain.RatingAgain {
			c.LearningStepIndex = 0
			c.DueAt = domain.AddMinutes(now, s.AgainDelayMinutes)
			return
		}
		graduateFn(rating == domain.RatingEasy)
		return
	}

	step := min(c.LearningStepIndex, len(steps)-1)

	switch rating {
	case domain.RatingAgain:
		c.LearningStepIndex = 0
		c.DueAt = domain.AddMinutes(now, s.AgainDelayMinutes)
	case domain.RatingHard:
		c.LearningStepIndex = step
		c.DueAt = domain.AddMinutes(now, steps[step])
	case domain.RatingGood:
		if step+1 >= len(steps) {
			graduateFn(false)
			return
		}
		c.LearningStepIndex = step + 1
		c.DueAt = domain.AddMinutes(now, steps[step+1])
	case domain.RatingEasy:
		graduateFn(true)
	}
}

// gradeReview schedules a card that is already in long-term review.
//
// again: lapse. Ease drops by the lapse penalty and the interval collapses to
// max(1, minimum, round(old * NewIntervalMultiplier)). The card enters
// Relearning at step 0 when a relearning ladder exists, otherwise it stays in
// Review and is due after the reduced interval.
//
// hard: round(old * HardInterval). good: round(old * ease * IntervalModifier).
// easy: the good interval times EasyBonus, and ease rises by a small bonus.
// Every interval is at least MinimumIntervalDays and at most
// MaximumIntervalDays.
func gradeReview(c *domain.Card, rating domain.Rating, s Settings, now time.Time) {
	old := float64(c.IntervalDays)

	switch rating {
	case domain.RatingAgain:
		c.Lapses++
		c.Ease = clampEase(c.Ease - lapseEasePenalty)
		c.IntervalDays = clampInterval(max(1, s.MinimumIntervalDays, roundDays(old*s.NewIntervalMultiplier)), s)
		if len(s.RelearningSteps) == 0 {
			c.DueAt = domain.AddDays(now, c.IntervalDays)
			return
		}
		c.State = domain.StateRelearning
		c.LearningStepIndex = 0
		c.DueAt = domain.AddMinutes(now, s.AgainDelayMinutes)
		return
	case domain.RatingHard:
		c.IntervalDays = clampInterval(max(s.MinimumIntervalDays, roundDays(old*s.HardInterval)), s)
	case domain.RatingGood:
		c.IntervalDays = clampInterval(max(s.MinimumIntervalDays, roundDays(old*c.Ease*s.IntervalModifier)), s)
	case domain.RatingEasy:
		c.IntervalDays = clampInterval(max(s.MinimumIntervalDays, roundDays(old*c.Ease*s.IntervalModifier*s.EasyBonus)), s)
		c.Ease = clampEase(c.Ease + easyEaseBonus)
	}

	c.LearningStepIndex = 0
	c.DueAt = domain.AddDays(now, c.IntervalDays)
}

// graduate moves a card into Review with the given interval in days.
func graduate(c *domain.Card, intervalDays int, s Settings, now time.Time) {
	c.State = domain.StateReview
	c.LearningStepIndex = 0
	c.IntervalDays = clampInterval(intervalDays, s)
	c.DueAt = domain.AddDays(now, c.IntervalDays)
}

func clampInterval(days int, s Settings) int {
	if days < 0 {
		return 0
	}
	return min(days, s.MaximumIntervalDays)
}

func clampEase(ease float64) float64 {
	// Keep two decimals so repeated adjustments do not drift.
	ease = math.Round(ease*100) / 100
	return math.Min(math.Max(ease, domain.MinEase), domain.MaxEase)
}

func roundDays(days float64) int {
	if math.IsNaN(days) || math.IsInf(days, 0) {
		return 0
	}
	return int(math.Round(days))
}
