package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/domain"
	"github.com/phrazzld/scry-decks/internal/domain/queue"
	"github.com/phrazzld/scry-decks/internal/domain/srs"
	"github.com/phrazzld/scry-decks/internal/service/study"
	"github.com/phrazzld/scry-decks/internal/task"
)

// AnswerRequest is the payload for grading a card.
type AnswerRequest struct {
	Rating    string `json:"rating"     validate:"required,oneof=again hard good easy"`
	ElapsedMs int64  `json:"elapsed_ms" validate:"gte=0"`
}

// StartSessionRequest is the payload for starting a study session.
type StartSessionRequest struct {
	// DeckIDs restricts the session to these decks; empty means every deck.
	DeckIDs []string `json:"deck_ids" validate:"omitempty,max=100,dive,uuid"`
}

// deckUUIDs parses the already validated deck IDs.
func (r StartSessionRequest) deckUUIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(r.DeckIDs))
	for _, raw := range r.DeckIDs {
		if id, err := uuid.Parse(raw); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// CardResponse is the client view of a card and its schedule.
type CardResponse struct {
	ID                uuid.UUID        `json:"id"`
	DeckID            uuid.UUID        `json:"deck_id"`
	Front             string           `json:"front"`
	Back              string           `json:"back"`
	Reversible        bool             `json:"reversible"`
	State             domain.CardState `json:"state"`
	Suspended         bool             `json:"suspended"`
	DueAt             time.Time        `json:"due_at"`
	IntervalDays      int              `json:"interval_days"`
	Ease              float64          `json:"ease"`
	LearningStepIndex int              `json:"learning_step_index"`
	Reps              int              `json:"reps"`
	Lapses            int              `json:"lapses"`
	LastReviewedAt    *time.Time       `json:"last_reviewed_at,omitempty"`
}

// ReviewResponse describes the review log entry written by an answer.
type ReviewResponse struct {
	ID               uuid.UUID        `json:"id"`
	Rating           domain.Rating    `json:"rating"`
	ReviewedAt       time.Time        `json:"reviewed_at"`
	PreviousState    domain.CardState `json:"previous_state"`
	PreviousInterval int              `json:"previous_interval"`
	NewInterval      int              `json:"new_interval"`
	NewDueAt         time.Time        `json:"new_due_at"`
}

// AnswerResponse is returned after grading a card.
type AnswerResponse struct {
	Card   CardResponse   `json:"card"`
	Review ReviewResponse `json:"review"`
}

// QueueResponse is the ordered study queue.
type QueueResponse struct {
	Cards    []CardResponse      `json:"cards"`
	Counters queue.DailyCounters `json:"counters"`
}

// PreviewResponse shows what each rating would do to a card.
type PreviewResponse struct {
	CardID uuid.UUID           `json:"card_id"`
	Again  srs.IntervalPreview `json:"again"`
	Hard   srs.IntervalPreview `json:"hard"`
	Good   srs.IntervalPreview `json:"good"`
	Easy   srs.IntervalPreview `json:"easy"`
}

// DeckResponse is the client view of a deck.
type DeckResponse struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Path      string     `json:"path"`
	ParentID  *uuid.UUID `json:"parent_deck_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// DeckListResponse lists a user's decks.
type DeckListResponse struct {
	Decks []DeckResponse `json:"decks"`
}

// PromptResponse is the card a session is currently asking about.
type PromptResponse struct {
	CardID      uuid.UUID         `json:"card_id"`
	Orientation study.Orientation `json:"orientation"`
	Question    string            `json:"question"`
	Answer      string            `json:"answer"`
	State       domain.CardState  `json:"state"`
}

// SessionResponse reports a session's current prompt and progress. Prompt is
// nil when nothing is ready; Finished says whether anything is still parked.
type SessionResponse struct {
	ID       uuid.UUID       `json:"id"`
	Prompt   *PromptResponse `json:"prompt,omitempty"`
	Progress study.Progress  `json:"progress"`
	Finished bool            `json:"finished"`
}

// SessionAnswerResponse is returned after answering within a session.
type SessionAnswerResponse struct {
	Card      CardResponse    `json:"card"`
	Placement string          `json:"placement"`
	Session   SessionResponse `json:"session"`
}

// ImportAcceptedResponse is returned when an import job is queued.
type ImportAcceptedResponse struct {
	JobID  uuid.UUID       `json:"job_id"`
	Status task.TaskStatus `json:"status"`
}

// ImportJobResponse reports an import job.
type ImportJobResponse struct {
	ID            uuid.UUID       `json:"id"`
	Status        task.TaskStatus `json:"status"`
	Summary       json.RawMessage `json:"summary,omitempty"`
	ErrorCategory string          `json:"error_category,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// HealthResponse reports service health.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

func cardToResponse(c domain.Card) CardResponse {
	return CardResponse{
		ID:                c.ID,
		DeckID:            c.DeckID,
		Front:             c.Front,
		Back:              c.Back,
		Reversible:        c.Reversible,
		State:             c.State,
		Suspended:         c.Suspended,
		DueAt:             c.DueAt,
		IntervalDays:      c.IntervalDays,
		Ease:              c.Ease,
		LearningStepIndex: c.LearningStepIndex,
		Reps:              c.Reps,
		Lapses:            c.Lapses,
		LastReviewedAt:    c.LastReviewedAt,
	}
}

func gradedToResponse(g *srs.GradedResult) AnswerResponse {
	return AnswerResponse{
		Card: cardToResponse(g.Card),
		Review: ReviewResponse{
			ID:               g.Log.ID,
			Rating:           g.Log.Rating,
			ReviewedAt:       g.Log.ReviewedAt,
			PreviousState:    g.Log.PreviousState,
			PreviousInterval: g.Log.PreviousInterval,
			NewInterval:      g.Log.NewInterval,
			NewDueAt:         g.Log.NewDueAt,
		},
	}
}

func sessionToResponse(s *study.Session) SessionResponse {
	resp := SessionResponse{
		ID:       s.ID(),
		Progress: s.Progress(),
		Finished: s.Finished(),
	}
	if p, ok := s.Current(); ok {
		resp.Prompt = &PromptResponse{
			CardID:      p.Card.ID,
			Orientation: p.Orientation,
			Question:    p.Question,
			Answer:      p.Answer,
			State:       p.Card.State,
		}
	}
	return resp
}

func recordToResponse(rec *task.Record) ImportJobResponse {
	return ImportJobResponse{
		ID:            rec.ID,
		Status:        rec.Status,
		Summary:       rec.Result,
		ErrorCategory: rec.ErrorCategory,
		ErrorMessage:  rec.ErrorMessage,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
}
