package importing_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/ankiimport"
	"github.com/phrazzld/scry-decks/internal/domain"
	"github.com/phrazzld/scry-decks/internal/mocks"
	"github.com/phrazzld/scry-decks/internal/platform/postgres"
	"github.com/phrazzld/scry-decks/internal/service/importing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipelineFunc adapts a function to importing.Pipeline.
type pipelineFunc func(
	ctx context.Context,
	data []byte,
	ownerID uuid.UUID,
	decks ankiimport.DeckResolver,
	media ankiimport.MediaUploader,
	cards ankiimport.CardInserter,
) (*ankiimport.Summary, error)

func (f pipelineFunc) Import(
	ctx context.Context,
	data []byte,
	ownerID uuid.UUID,
	decks ankiimport.DeckResolver,
	media ankiimport.MediaUploader,
	cards ankiimport.CardInserter,
) (*ankiimport.Summary, error) {
	return f(ctx, data, ownerID, decks, media, cards)
}

// importOne creates a deck and one card through the stores it is given.
func importOne(failWith error) pipelineFunc {
	return func(
		ctx context.Context,
		_ []byte,
		ownerID uuid.UUID,
		decks ankiimport.DeckResolver,
		_ ankiimport.MediaUploader,
		cards ankiimport.CardInserter,
	) (*ankiimport.Summary, error) {
		deck, err := decks.FindOrCreate(ctx, ownerID, "Spanish", nil)
		if err != nil {
			return nil, err
		}
		card, err := domain.NewCard(ownerID, deck.ID, "hola", "hello", 2.5, time.Now())
		if err != nil {
			return nil, err
		}
		if err := cards.Create(ctx, card); err != nil {
			return nil, err
		}
		summary := &ankiimport.Summary{TotalCards: 1, Imported: 1, DecksTouched: 1, Skipped: map[ankiimport.SkipReason]int{}}
		return summary, failWith
	}
}

type fixture struct {
	db    sqlmock.Sqlmock
	decks *mocks.MockDeckStore
	cards *mocks.MockCardStore
	svc   *importing.Service
}

func newFixture(t *testing.T, pipeline importing.Pipeline, maxBytes int64) *fixture {
	t.Helper()

	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, dbMock.ExpectationsWereMet())
		_ = db.Close()
	})

	f := &fixture{db: dbMock, decks: mocks.NewMockDeckStore(), cards: mocks.NewMockCardStore()}
	f.svc = importing.NewService(importing.Deps{
		DB:              db,
		Decks:           f.decks,
		Cards:           f.cards,
		Pipeline:        pipeline,
		MaxArchiveBytes: maxBytes,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return f
}

// expectWrite expects one write wrapped in a released savepoint.
func expectWrite(db sqlmock.Sqlmock) {
	db.ExpectExec("^SAVEPOINT import_item$").WillReturnResult(sqlmock.NewResult(0, 0))
	db.ExpectExec("^RELEASE SAVEPOINT import_item$").WillReturnResult(sqlmock.NewResult(0, 0))
}

func TestImport_CommitsOnSuccess(t *testing.T) {
	t.Parallel()
	f := newFixture(t, importOne(nil), 1024)
	owner := uuid.New()

	f.db.ExpectBegin()
	expectWrite(f.db) // deck
	expectWrite(f.db) // card
	f.db.ExpectCommit()

	summary, err := f.svc.Import(context.Background(), owner, []byte("archive"))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Imported)
	assert.Empty(t, summary.Warnings)

	assert.Equal(t, 1, f.decks.TxCount(), "decks must be written inside the transaction")
	assert.Equal(t, 1, f.cards.TxCount(), "cards must be written inside the transaction")
	require.Len(t, f.cards.Cards(), 1)
	assert.Equal(t, owner, f.cards.Cards()[0].UserID)
}

func TestImport_ThresholdAbortRollsBack(t *testing.T) {
	t.Parallel()
	abort := &ankiimport.ThresholdExceededError{Failed: 5, Processed: 10, Threshold: 0.1}
	f := newFixture(t, importOne(abort), 0)

	f.db.ExpectBegin()
	expectWrite(f.db)
	expectWrite(f.db)
	f.db.ExpectRollback()

	summary, err := f.svc.Import(context.Background(), uuid.New(), []byte("archive"))
	require.ErrorIs(t, err, ankiimport.ErrThresholdExceeded)
	assert.Equal(t, ankiimport.CategoryTooManyFailures, ankiimport.Category(err))

	require.NotNil(t, summary, "the summary explains which cards failed")
	assert.Contains(t, summary.Warnings, "import aborted: no cards or decks were saved")
}

func TestImport_RejectsOversizedArchive(t *testing.T) {
	t.Parallel()
	called := false
	f := newFixture(t, pipelineFunc(func(
		context.Context, []byte, uuid.UUID, ankiimport.DeckResolver, ankiimport.MediaUploader, ankiimport.CardInserter,
	) (*ankiimport.Summary, error) {
		called = true
		return nil, nil
	}), 4)

	summary, err := f.svc.Import(context.Background(), uuid.New(), []byte("too big"))
	assert.Nil(t, summary)
	assert.ErrorIs(t, err, importing.ErrArchiveTooLarge)
	assert.Equal(t, ankiimport.CategoryResource, ankiimport.Category(err))
	assert.False(t, called)
}

func TestImport_BeginFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t, importOne(nil), 0)

	f.db.ExpectBegin().WillReturnError(errors.New("too many connections"))

	_, err := f.svc.Import(context.Background(), uuid.New(), []byte("archive"))
	assert.ErrorContains(t, err, "too many connections")
	assert.Empty(t, f.cards.Cards())
}

func TestImport_RealPipelineRejectsGarbage(t *testing.T) {
	t.Parallel()
	f := newFixture(t, ankiimport.NewImporter(ankiimport.Config{TempDir: t.TempDir()}, nil), 0)

	f.db.ExpectBegin()
	f.db.ExpectRollback()

	summary, err := f.svc.Import(context.Background(), uuid.New(), []byte("not a zip file"))
	assert.Nil(t, summary)
	assert.ErrorIs(t, err, ankiimport.ErrInvalidArchive)
	assert.Equal(t, ankiimport.CategoryUnsupportedFormat, ankiimport.Category(err))
}

func TestImport_FailedInsertKeepsTransactionUsable(t *testing.T) {
	t.Parallel()

	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, dbMock.ExpectationsWereMet())
		_ = db.Close()
	})

	fronts := []string{"uno", "dos", "tres"}
	pipeline := pipelineFunc(func(
		ctx context.Context,
		_ []byte,
		ownerID uuid.UUID,
		decks ankiimport.DeckResolver,
		_ ankiimport.MediaUploader,
		cards ankiimport.CardInserter,
	) (*ankiimport.Summary, error) {
		deck, err := decks.FindOrCreate(ctx, ownerID, "Spanish", nil)
		if err != nil {
			return nil, err
		}
		summary := &ankiimport.Summary{TotalCards: len(fronts), Skipped: map[ankiimport.SkipReason]int{}}
		for _, front := range fronts {
			card, err := domain.NewCard(ownerID, deck.ID, front, "back", 2.5, time.Now())
			require.NoError(t, err)
			if err := cards.Create(ctx, card); err != nil {
				summary.Failed++
				summary.Failures = append(summary.Failures, ankiimport.CardFailure{Reason: err.Error()})
				continue
			}
			summary.Imported++
		}
		return summary, nil
	})

	svc := importing.NewService(importing.Deps{
		DB:       db,
		Decks:    mocks.NewMockDeckStore(),
		Cards:    postgres.NewPostgresCardStore(db, nil),
		Pipeline: pipeline,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	dbMock.ExpectBegin()
	expectWrite(dbMock) // deck
	dbMock.ExpectExec("^SAVEPOINT import_item$").WillReturnResult(sqlmock.NewResult(0, 0))
	dbMock.ExpectExec("INSERT INTO cards").WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectExec("^RELEASE SAVEPOINT import_item$").WillReturnResult(sqlmock.NewResult(0, 0))
	dbMock.ExpectExec("^SAVEPOINT import_item$").WillReturnResult(sqlmock.NewResult(0, 0))
	dbMock.ExpectExec("INSERT INTO cards").WillReturnError(errors.New("value out of range for type integer"))
	dbMock.ExpectExec("^ROLLBACK TO SAVEPOINT import_item$").WillReturnResult(sqlmock.NewResult(0, 0))
	dbMock.ExpectExec("^SAVEPOINT import_item$").WillReturnResult(sqlmock.NewResult(0, 0))
	dbMock.ExpectExec("INSERT INTO cards").WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectExec("^RELEASE SAVEPOINT import_item$").WillReturnResult(sqlmock.NewResult(0, 0))
	dbMock.ExpectCommit()

	summary, err := svc.Import(context.Background(), uuid.New(), []byte("archive"))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Imported)
	assert.Equal(t, 1, summary.Failed)
	assert.Empty(t, summary.Warnings)
}

func TestImport_SavepointRollbackFailureIsReported(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		rollback  error
		wantInErr []string
	}{
		{"rollback succeeds", nil, []string{"duplicate"}},
		{"rollback fails", errors.New("connection reset"), []string{"duplicate", "connection reset"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var createErr error
			pipeline := pipelineFunc(func(
				ctx context.Context,
				_ []byte,
				ownerID uuid.UUID,
				_ ankiimport.DeckResolver,
				_ ankiimport.MediaUploader,
				cards ankiimport.CardInserter,
			) (*ankiimport.Summary, error) {
				card, err := domain.NewCard(ownerID, uuid.New(), "hola", "hello", 2.5, time.Now())
				require.NoError(t, err)
				createErr = cards.Create(ctx, card)
				return &ankiimport.Summary{TotalCards: 1, Failed: 1, Skipped: map[ankiimport.SkipReason]int{}}, nil
			})
			f := newFixture(t, pipeline, 0)
			f.cards.CreateFn = func(context.Context, *domain.Card) error { return errors.New("duplicate") }

			f.db.ExpectBegin()
			f.db.ExpectExec("^SAVEPOINT import_item$").WillReturnResult(sqlmock.NewResult(0, 0))
			rb := f.db.ExpectExec("^ROLLBACK TO SAVEPOINT import_item$")
			if tc.rollback != nil {
				rb.WillReturnError(tc.rollback)
			} else {
				rb.WillReturnResult(sqlmock.NewResult(0, 0))
			}
			f.db.ExpectCommit()

			_, err := f.svc.Import(context.Background(), uuid.New(), []byte("archive"))
			require.NoError(t, err)
			require.Error(t, createErr)
			for _, want := range tc.wantInErr {
				assert.ErrorContains(t, createErr, want)
			}
		})
	}
}
