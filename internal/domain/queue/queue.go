// Package queue builds the ordered study queue for a sitting and classifies
// graded cards for in-session requeueing.
package queue

import (
	"cmp"
	"slices"
	"time"

	"github.com/phrazzld/scry-decks/internal/domain"
	"github.com/phrazzld/scry-decks/internal/domain/srs"
)

// DailyCounters records how many cards of each quota tier were already
// studied today.
type DailyCounters struct {
	NewDone     int `json:"new_done"`
	ReviewsDone int `json:"reviews_done"`
}

// BuildQueue returns the cards to study now, in order.
//
// Learning and relearning cards that are due always come first and are not
// limited by quota. Due review cards are limited to
// MaxReviewsPerDay - counters.ReviewsDone and due new cards to
// NewCardsPerDay - counters.NewDone. Settings.ReviewOrder decides how the
// review and new tiers are combined. Suspended cards are never returned.
//
// Cards are copied into the result; candidates is not reordered.
func BuildQueue(candidates []domain.Card, counters DailyCounters, settings srs.Settings, now time.Time) []domain.Card {
	settings = settings.WithDefaults()

	var learning, reviews, fresh []domain.Card
	for _, c := range candidates {
		if c.Suspended || c.DueAt.After(now) {
			continue
		}
		switch c.State {
		case domain.StateLearning, domain.StateRelearning:
			learning = append(learning, c)
		case domain.StateReview:
			reviews = append(reviews, c)
		case domain.StateNew:
			fresh = append(fresh, c)
		}
	}

	slices.SortFunc(learning, byDue)
	slices.SortFunc(reviews, byDue)
	slices.SortFunc(fresh, byCreated)

	reviews = limit(reviews, settings.MaxReviewsPerDay-counters.ReviewsDone)
	fresh = limit(fresh, settings.NewCardsPerDay-counters.NewDone)

	out := make([]domain.Card, 0, len(learning)+len(reviews)+len(fresh))
	out = append(out, learning...)

	switch settings.ReviewOrder {
	case srs.NewFirst:
		out = append(out, fresh...)
		out = append(out, reviews...)
	case srs.Mixed:
		out = append(out, interleave(fresh, reviews)...)
	default:
		out = append(out, reviews...)
		out = append(out, fresh...)
	}
	return out
}

// interleave alternates a and b starting with a, then appends whatever is
// left of the longer list.
func interleave(a, b []domain.Card) []domain.Card {
	out := make([]domain.Card, 0, len(a)+len(b))
	i := 0
	for ; i < len(a) && i < len(b); i++ {
		out = append(out, a[i], b[i])
	}
	out = append(out, a[i:]...)
	return append(out, b[i:]...)
}

func limit(cards []domain.Card, remaining int) []domain.Card {
	if remaining <= 0 {
		return nil
	}
	if len(cards) > remaining {
		return cards[:remaining]
	}
	return cards
}

func byDue(a, b domain.Card) int {
	if c := a.DueAt.Compare(b.DueAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID.String(), b.ID.String())
}

func byCreated(a, b domain.Card) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID.String(), b.ID.String())
}
