package queue

import (
	"time"

	"github.com/phrazzld/scry-decks/internal/domain"
)

const (
	// RequeueHorizon is how close a ladder card's due time must be for it to
	// stay in the active session queue.
	RequeueHorizon = 60 * time.Second

	// RequeueOffset is how many positions ahead a requeued card is reinserted.
	RequeueOffset = 3
)

// Placement tells a session what to do with a card it has just graded.
type Placement int

// Possible placements
const (
	// PlacementDone removes the card from the session.
	PlacementDone Placement = iota
	// PlacementRequeue reinserts the card a few positions ahead.
	PlacementRequeue
	// PlacementPark holds the card until its due time elapses.
	PlacementPark
)

// String implements fmt.Stringer.
func (p Placement) String() string {
	switch p {
	case PlacementRequeue:
		return "requeue"
	case PlacementPark:
		return "park"
	default:
		return "done"
	}
}

// Classify decides where a freshly graded card goes within the current
// session. It holds no state; the session owns the parked set.
func Classify(card domain.Card, now time.Time) Placement {
	if !card.State.InLadder() || card.Suspended {
		return PlacementDone
	}
	if card.DueAt.Sub(now) <= RequeueHorizon {
		return PlacementRequeue
	}
	return PlacementPark
}

// RequeuePosition returns the index at which a requeued card is inserted
// into a queue of remaining cards.
func RequeuePosition(remaining int) int {
	return min(RequeueOffset, remaining)
}
