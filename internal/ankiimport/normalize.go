package ankiimport

import (
	"time"

	"github.com/phrazzld/scry-decks/internal/domain"
)

// Anki queue values.
const (
	queueBuriedManual = -3
	queueBuriedSched  = -2
	queueSuspended    = -1
	queueNew          = 0
	queueLearning     = 1
	queueReview       = 2
	queueDayLearning  = 3
)

// Anki card type values, used to resolve buried cards.
const (
	typeNew        = 0
	typeLearning   = 1
	typeReview     = 2
	typeRelearning = 3
)

// minLearningDueSeconds is 2001-01-01T00:00:00Z. Smaller intraday due values
// are not timestamps.
const minLearningDueSeconds = 978307200

// maxDueDays bounds day offsets so the millisecond arithmetic cannot overflow.
const maxDueDays = 3_000_000

// stateFor maps a foreign queue and type to a card state and suspension flag.
// known is false for queue values outside the table, which fall back to New.
func stateFor(queue, cardType int) (state domain.CardState, suspended bool, known bool) {
	switch queue {
	case queueNew:
		return domain.StateNew, false, true
	case queueLearning, queueDayLearning:
		return domain.StateLearning, false, true
	case queueReview:
		return domain.StateReview, false, true
	case queueSuspended:
		// The state is irrelevant while suspended; keep the type's best guess.
		return stateForType(cardType), true, true
	case queueBuriedSched, queueBuriedManual:
		// Burial is a same-day hide and is not carried over as suspension.
		return stateForType(cardType), false, true
	default:
		return domain.StateNew, false, false
	}
}

func stateForType(cardType int) domain.CardState {
	switch cardType {
	case typeLearning, typeRelearning:
		return domain.StateLearning
	case typeReview:
		return domain.StateReview
	default:
		return domain.StateNew
	}
}

// dueFor interprets the overloaded due field. fellBack reports that the value
// could not be converted and now was used instead.
func dueFor(queue int, due int64, created, now time.Time) (dueAt time.Time, fellBack bool) {
	switch {
	case queue == queueNew:
		// A sort position, not a date.
		return now, false
	case queue == queueLearning:
		if due < minLearningDueSeconds {
			return now, true
		}
		dueAt = time.Unix(due, 0).UTC()
	case queue == queueReview || queue == queueDayLearning || queue < 0:
		if due > maxDueDays || due < -maxDueDays {
			return now, true
		}
		dueAt = time.UnixMilli(created.UnixMilli() + due*domain.MillisPerDay).UTC()
	default:
		return now, false
	}

	if !domain.IsValidInstant(dueAt) {
		return now, true
	}
	return dueAt, false
}

// easeFor converts a factor in thousandths. New cards have no ease of their
// own yet and take startingEase, as does any result outside the valid range.
func easeFor(state domain.CardState, factor int64, startingEase float64) float64 {
	if state == domain.StateNew {
		return startingEase
	}
	ease := float64(factor) / 1000
	if ease < domain.MinEase || ease > domain.MaxEase {
		return startingEase
	}
	return ease
}

// intervalFor drops the foreign interval for New cards and for negative
// values, which encode intraday learning delays in seconds.
func intervalFor(state domain.CardState, interval int64) int {
	if state == domain.StateNew || interval < 0 {
		return 0
	}
	return int(interval)
}

// createdFor reads the foreign card id as a millisecond creation timestamp
// when it is plausible.
func createdFor(foreignID int64, now time.Time) time.Time {
	created := time.UnixMilli(foreignID).UTC()
	if created.Unix() < minLearningDueSeconds || created.After(now) || !domain.IsValidInstant(created) {
		return now
	}
	return created
}
