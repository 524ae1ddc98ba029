package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/domain"
	"github.com/phrazzld/scry-decks/internal/platform/logger"
	"github.com/phrazzld/scry-decks/internal/store"
)

// PostgresReviewLogStore implements store.ReviewLogStore.
type PostgresReviewLogStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresReviewLogStore creates a review log store over db.
func NewPostgresReviewLogStore(db store.DBTX, logger *slog.Logger) *PostgresReviewLogStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresReviewLogStore{
		db:     db,
		logger: logger.With(slog.String("component", "review_log_store")),
	}
}

var _ store.ReviewLogStore = (*PostgresReviewLogStore)(nil)

// Append implements store.ReviewLogStore.Append
func (s *PostgresReviewLogStore) Append(ctx context.Context, entry *domain.ReviewLog) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := entry.Validate(); err != nil {
		log.Warn("review log validation failed",
			slog.String("error", err.Error()),
			slog.String("card_id", entry.CardID.String()))
		return err
	}

	query := `
		INSERT INTO review_logs (id, card_id, user_id, rating, reviewed_at, previous_state,
			previous_interval, new_interval, new_due_at, elapsed_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.CardID,
		entry.UserID,
		string(entry.Rating),
		entry.ReviewedAt.UTC(),
		string(entry.PreviousState),
		entry.PreviousInterval,
		entry.NewInterval,
		entry.NewDueAt.UTC(),
		entry.ElapsedMs,
	)
	if err != nil {
		log.Error("failed to append review log",
			slog.String("error", err.Error()),
			slog.String("card_id", entry.CardID.String()))
		return store.NewStoreError("review_log", "append", "failed to insert review log", MapError(err))
	}
	return nil
}

// CountSince implements store.ReviewLogStore.CountSince
func (s *PostgresReviewLogStore) CountSince(
	ctx context.Context,
	userID uuid.UUID,
	since time.Time,
	previousState domain.CardState,
) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT COUNT(*)
		FROM review_logs
		WHERE user_id = $1 AND reviewed_at >= $2 AND previous_state = $3
	`
	var count int
	if err := s.db.QueryRowContext(ctx, query, userID, since.UTC(), string(previousState)).Scan(&count); err != nil {
		log.Error("failed to count review logs",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return 0, store.NewStoreError("review_log", "count", "failed to count review logs", MapError(err))
	}
	return count, nil
}

// WithTx implements store.ReviewLogStore.WithTx
func (s *PostgresReviewLogStore) WithTx(tx *sql.Tx) store.ReviewLogStore {
	return &PostgresReviewLogStore{db: tx, logger: s.logger}
}
