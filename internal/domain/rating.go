package domain

// Rating is the user's answer to a review.
type Rating string

// Possible rating values
const (
	RatingAgain Rating = "again"
	RatingHard  Rating = "hard"
	RatingGood  Rating = "good"
	RatingEasy  Rating = "easy"
)

// Ratings lists every valid rating in button order.
var Ratings = []Rating{RatingAgain, RatingHard, RatingGood, RatingEasy}

// IsValid reports whether r is one of the four known ratings.
func (r Rating) IsValid() bool {
	switch r {
	case RatingAgain, RatingHard, RatingGood, RatingEasy:
		return true
	default:
		return false
	}
}

// CardState is the position of a card in the learning lifecycle.
type CardState string

// Possible card states
const (
	StateNew        CardState = "new"
	StateLearning   CardState = "learning"
	StateRelearning CardState = "relearning"
	StateReview     CardState = "review"
)

// IsValid reports whether s is a known state.
func (s CardState) IsValid() bool {
	switch s {
	case StateNew, StateLearning, StateRelearning, StateReview:
		return true
	default:
		return false
	}
}

// InLadder reports whether the card is walking a learning or relearning step ladder.
func (s CardState) InLadder() bool {
	return s == StateLearning || s == StateRelearning
}
