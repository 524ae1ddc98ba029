package srs

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ReviewOrder controls how due reviews and new cards are interleaved in a queue.
type ReviewOrder string

// Supported review orders
const (
	ReviewsBeforeNew ReviewOrder = "reviewsBeforeNew"
	NewFirst         ReviewOrder = "newFirst"
	Mixed            ReviewOrder = "mixed"
)

// Settings holds every tunable of the scheduler and the queue builder.
// Step ladders are in minutes; intervals are in whole days.
type Settings struct {
	LearningSteps   []float64 `mapstructure:"learning_steps" json:"learning_steps" validate:"dive,gt=0"`
	RelearningSteps []float64 `mapstructure:"relearning_steps" json:"relearning_steps" validate:"dive,gt=0"`

	GraduatingIntervalDays int `mapstructure:"graduating_interval_days" json:"graduating_interval_days" validate:"gte=1"`
	EasyIntervalDays       int `mapstructure:"easy_interval_days" json:"easy_interval_days" validate:"gte=1"`

	StartingEase          float64 `mapstructure:"starting_ease" json:"starting_ease" validate:"gte=1.3,lte=5"`
	EasyBonus             float64 `mapstructure:"easy_bonus" json:"easy_bonus" validate:"gte=1"`
	HardInterval          float64 `mapstructure:"hard_interval" json:"hard_interval" validate:"gt=0"`
	IntervalModifier      float64 `mapstructure:"interval_modifier" json:"interval_modifier" validate:"gt=0"`
	NewIntervalMultiplier float64 `mapstructure:"new_interval_multiplier" json:"new_interval_multiplier" validate:"gte=0,lte=1"`

	MinimumIntervalDays int     `mapstructure:"minimum_interval_days" json:"minimum_interval_days" validate:"gte=1"`
	MaximumIntervalDays int     `mapstructure:"maximum_interval_days" json:"maximum_interval_days" validate:"gtefield=MinimumIntervalDays"`
	AgainDelayMinutes   float64 `mapstructure:"again_delay_minutes" json:"again_delay_minutes" validate:"gt=0"`

	NewCardsPerDay   int         `mapstructure:"new_cards_per_day" json:"new_cards_per_day" validate:"gte=0"`
	MaxReviewsPerDay int         `mapstructure:"max_reviews_per_day" json:"max_reviews_per_day" validate:"gte=0"`
	ReviewOrder      ReviewOrder `mapstructure:"review_order" json:"review_order" validate:"oneof=reviewsBeforeNew newFirst mixed"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		LearningSteps:          []float64{1, 10},
		RelearningSteps:        []float64{10},
		GraduatingIntervalDays: 1,
		EasyIntervalDays:       4,
		StartingEase:           2.5,
		EasyBonus:              1.3,
		HardInterval:           1.2,
		IntervalModifier:       1.0,
		NewIntervalMultiplier:  0.0,
		MinimumIntervalDays:    1,
		MaximumIntervalDays:    36500,
		AgainDelayMinutes:      1,
		NewCardsPerDay:         20,
		MaxReviewsPerDay:       9999,
		ReviewOrder:            ReviewsBeforeNew,
	}
}

// WithDefaults returns a copy of s where every missing field takes its default.
// A nil ladder is missing; an empty non-nil ladder is kept and means "no steps".
// Numeric zero values count as missing, except NewIntervalMultiplier whose
// default is zero anyway and the two daily quotas, where zero turns new cards
// or reviews off. Start from DefaultSettings to get the default quotas.
func (s Settings) WithDefaults() Settings {
	d := DefaultSettings()

	if s.LearningSteps == nil {
		s.LearningSteps = d.LearningSteps
	} else {
		s.LearningSteps = append([]float64{}, s.LearningSteps...)
	}
	if s.RelearningSteps == nil {
		s.RelearningSteps = d.RelearningSteps
	} else {
		s.RelearningSteps = append([]float64{}, s.RelearningSteps...)
	}
	if s.GraduatingIntervalDays == 0 {
		s.GraduatingIntervalDays = d.GraduatingIntervalDays
	}
	if s.EasyIntervalDays == 0 {
		s.EasyIntervalDays = d.EasyIntervalDays
	}
	if s.StartingEase == 0 {
		s.StartingEase = d.StartingEase
	}
	if s.EasyBonus == 0 {
		s.EasyBonus = d.EasyBonus
	}
	if s.HardInterval == 0 {
		s.HardInterval = d.HardInterval
	}
	if s.IntervalModifier == 0 {
		s.IntervalModifier = d.IntervalModifier
	}
	if s.MinimumIntervalDays == 0 {
		s.MinimumIntervalDays = d.MinimumIntervalDays
	}
	if s.MaximumIntervalDays == 0 {
		s.MaximumIntervalDays = d.MaximumIntervalDays
	}
	if s.AgainDelayMinutes == 0 {
		s.AgainDelayMinutes = d.AgainDelayMinutes
	}
	if s.ReviewOrder == "" {
		s.ReviewOrder = d.ReviewOrder
	}
	return s
}

// Validate checks the settings against their struct tags.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid scheduler settings: %w", err)
	}
	return nil
}
