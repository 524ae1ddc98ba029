package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/phrazzld/scry-decks/internal/ankiimport"
	"github.com/phrazzld/scry-decks/internal/config"
	"github.com/phrazzld/scry-decks/internal/domain/srs"
	"github.com/phrazzld/scry-decks/internal/platform/clock"
	"github.com/phrazzld/scry-decks/internal/platform/media"
	"github.com/phrazzld/scry-decks/internal/platform/postgres"
	"github.com/phrazzld/scry-decks/internal/service/card_review"
	"github.com/phrazzld/scry-decks/internal/service/importing"
	"github.com/phrazzld/scry-decks/internal/store"
)

// application holds the dependencies shared by the serve and import commands.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	decks store.DeckStore
	cards store.CardStore
	logs  store.ReviewLogStore
	tasks *postgres.PostgresTaskStore

	reviewer card_review.CardReviewService
	importer *importing.Service
	media    media.Uploader
}

// newApplication connects to the database and wires the services.
func newApplication(ctx context.Context, cfg *config.Config, log *slog.Logger) (*application, error) {
	scheduler, err := srs.NewService(cfg.Scheduler.Settings)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler settings: %w", err)
	}

	db, err := postgres.Open(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}

	uploader, err := media.New(ctx, cfg.Media)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set up media storage: %w", err)
	}

	app := &application{
		config: cfg,
		logger: log,
		db:     db,
		decks:  postgres.NewPostgresDeckStore(db, log),
		cards:  postgres.NewPostgresCardStore(db, log),
		logs:   postgres.NewPostgresReviewLogStore(db, log),
		tasks:  postgres.NewPostgresTaskStore(db, log),
		media:  uploader,
	}

	app.reviewer = card_review.NewCardReviewService(card_review.Deps{
		DB:        db,
		Cards:     app.cards,
		Logs:      app.logs,
		Scheduler: scheduler,
		Clock:     clock.New(),
		Location:  cfg.Scheduler.Location(),
		Logger:    log,
	})

	pipeline := ankiimport.NewImporter(ankiimport.Config{
		TempDir:            cfg.Import.TempDir,
		StartingEase:       cfg.Scheduler.StartingEase,
		MaxCollectionBytes: cfg.Import.MaxDecodedBytes,
	}, log)

	app.importer = importing.NewService(importing.Deps{
		DB:              db,
		Decks:           app.decks,
		Cards:           app.cards,
		Media:           uploader,
		Pipeline:        pipeline,
		MaxArchiveBytes: cfg.Import.MaxArchiveBytes,
		Logger:          log,
	})

	return app, nil
}

// close releases the media client and the database pool.
func (app *application) close() error {
	var errs []error
	if closer, ok := app.media.(io.Closer); ok {
		errs = append(errs, closer.Close())
	}
	errs = append(errs, app.db.Close())
	return errors.Join(errs...)
}
