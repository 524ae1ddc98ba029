package srs

import (
	"time"

	"github.com/phrazzld/scry-decks/internal/domain"
)

// Service defines the interface for scheduler operations bound to one set of settings
type Service interface {
	// Grade applies a rating to a card
	Grade(card domain.Card, rating domain.Rating, now time.Time) (GradedResult, error)

	// PreviewIntervals reports what each rating would do without changing the card
	PreviewIntervals(card domain.Card, now time.Time) (Preview, error)

	// Settings returns the effective settings, with defaults applied
	Settings() Settings
}

// defaultService is the standard implementation of the Service interface
type defaultService struct {
	settings Settings
}

// NewDefaultService creates a scheduler service with DefaultSettings
func NewDefaultService() Service {
	return &defaultService{settings: DefaultSettings()}
}

// NewService creates a scheduler service with custom settings.
// Missing fields are defaulted before validation.
func NewService(settings Settings) (Service, error) {
	settings = settings.WithDefaults()
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &defaultService{settings: settings}, nil
}

// Grade implements the Service interface
func (s *defaultService) Grade(card domain.Card, rating domain.Rating, now time.Time) (GradedResult, error) {
	return Grade(card, rating, s.settings, now)
}

// PreviewIntervals implements the Service interface
func (s *defaultService) PreviewIntervals(card domain.Card, now time.Time) (Preview, error) {
	return PreviewIntervals(card, s.settings, now)
}

// Settings implements the Service interface
func (s *defaultService) Settings() Settings {
	return s.settings.WithDefaults()
}
