package queue

import (
	"time"

	"github.com/phrazzld/scry-decks/internal/domain"
)

// CountersFromLogs tallies today's quota usage from review log entries
// recorded at or after since. Reviews of New cards count against the new
// card quota and reviews of Review cards against the review quota; ladder
// repetitions count against neither.
func CountersFromLogs(logs []domain.ReviewLog, since time.Time) DailyCounters {
	var counters DailyCounters
	for _, l := range logs {
		if l.ReviewedAt.Before(since) {
			continue
		}
		switch l.PreviousState {
		case domain.StateNew:
			counters.NewDone++
		case domain.StateReview:
			counters.ReviewsDone++
		}
	}
	return counters
}

// StartOfDay returns local midnight for now in loc. A nil loc means UTC.
func StartOfDay(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
