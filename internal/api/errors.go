package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/phrazzld/scry-decks/internal/ankiimport"
	"github.com/phrazzld/scry-decks/internal/api/shared"
	"github.com/phrazzld/scry-decks/internal/domain"
	"github.com/phrazzld/scry-decks/internal/service/auth"
	"github.com/phrazzld/scry-decks/internal/service/card_review"
	"github.com/phrazzld/scry-decks/internal/service/study"
	"github.com/phrazzld/scry-decks/internal/store"
	"github.com/phrazzld/scry-decks/internal/task"
)

// errImportRateLimited is returned when a user submits imports too quickly.
var errImportRateLimited = errors.New("import rate limit exceeded")

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrMissingUser),
		errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized

	// Authorization errors
	case errors.Is(err, card_review.ErrCardNotOwned):
		return http.StatusForbidden

	// Not found errors
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, card_review.ErrCardNotFound),
		errors.Is(err, study.ErrSessionNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, store.ErrDuplicate),
		errors.Is(err, card_review.ErrConcurrentReview),
		errors.Is(err, card_review.ErrCardSuspended),
		errors.Is(err, study.ErrSessionClosed),
		errors.Is(err, study.ErrNoCurrentCard):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, card_review.ErrInvalidAnswer),
		errors.Is(err, task.ErrEmptyArchive),
		domain.IsValidationError(err):
		return http.StatusBadRequest

	// Import failures the client can act on
	case errors.Is(err, ankiimport.ErrInvalidArchive):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ankiimport.ErrCorruptData),
		errors.Is(err, ankiimport.ErrThresholdExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errImportRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, task.ErrQueueFull),
		errors.Is(err, task.ErrQueueClosed):
		return http.StatusServiceUnavailable

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingUser):
		return "Invalid token"
	case errors.Is(err, auth.ErrMissingToken):
		return "Authorization header required"
	case errors.Is(err, domain.ErrUnauthorized):
		return "User ID not found or invalid"

	case errors.Is(err, card_review.ErrCardNotOwned):
		return "You do not own this card"

	// Not found errors
	case errors.Is(err, store.ErrCardNotFound),
		errors.Is(err, card_review.ErrCardNotFound):
		return "Card not found"
	case errors.Is(err, store.ErrDeckNotFound):
		return "Deck not found"
	case errors.Is(err, study.ErrSessionNotFound):
		return "Study session not found"
	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"

	// Conflict errors
	case errors.Is(err, card_review.ErrConcurrentReview):
		return "Card was reviewed concurrently, please retry"
	case errors.Is(err, card_review.ErrCardSuspended):
		return "Card is suspended"
	case errors.Is(err, study.ErrSessionClosed):
		return "Study session is closed"
	case errors.Is(err, study.ErrNoCurrentCard):
		return "No card is waiting for an answer"
	case errors.Is(err, store.ErrDuplicate):
		return "Resource already exists"

	// Bad request errors
	case errors.Is(err, card_review.ErrInvalidAnswer):
		return "Invalid answer"
	case errors.Is(err, task.ErrEmptyArchive):
		return "Archive is empty"
	case errors.Is(err, store.ErrInvalidEntity),
		domain.IsValidationError(err):
		return "Invalid entity data"

	// Import errors
	case errors.Is(err, ankiimport.ErrInvalidArchive):
		return "Archive is not a supported collection export"
	case errors.Is(err, ankiimport.ErrCorruptData):
		return "Collection export is corrupted"
	case errors.Is(err, ankiimport.ErrThresholdExceeded):
		return "Too many cards failed to import"
	case errors.Is(err, errImportRateLimited):
		return "Too many imports, try again later"
	case errors.Is(err, task.ErrQueueFull),
		errors.Is(err, task.ErrQueueClosed):
		return "Import queue is unavailable, try again later"

	default:
		var svcErr *card_review.ServiceError
		if errors.As(err, &svcErr) {
			switch svcErr.Operation {
			case "submit_answer":
				return "Failed to submit answer"
			case "get_queue":
				return "Failed to build study queue"
			case "preview":
				return "Failed to preview intervals"
			}
		}
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the status and sanitized message for err. A
// non-empty message overrides the sanitized one for 4xx responses.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, message string) {
	status := MapErrorToStatusCode(err)
	userMessage := GetSafeErrorMessage(err)
	if message != "" && status < http.StatusInternalServerError {
		userMessage = message
	}

	var opts []shared.ResponseOption
	if category := ankiimport.Category(err); category != ankiimport.CategoryUnknown {
		opts = append(opts, shared.WithCategory(category))
	}
	shared.RespondWithErrorAndLog(w, r, status, userMessage, err, opts...)
}

// SanitizeValidationError removes sensitive details from validation errors
// and returns a user-friendly message.
func SanitizeValidationError(err error) string {
	errMsg := err.Error()

	// Example format: "Key: 'AnswerRequest.Rating' Error:Field validation for 'Rating' failed on the 'oneof' tag"
	if strings.Contains(errMsg, "Field validation") {
		parts := strings.Split(errMsg, "Error:")
		if len(parts) >= 2 {
			fieldParts := strings.Split(parts[1], "'")
			if len(fieldParts) >= 3 {
				field := fieldParts[1]
				var tag string
				if len(fieldParts) >= 5 {
					tag = fieldParts[3]
				}

				if tag != "" {
					return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(tag))
				}
				return fmt.Sprintf("Invalid %s", field)
			}
		}
	}

	return "Validation error"
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min", "gte", "gt":
		return "too small"
	case "max", "lte", "lt":
		return "too large"
	case "oneof":
		return "invalid value"
	case "uuid":
		return "invalid ID"
	default:
		return "validation failed"
	}
}
