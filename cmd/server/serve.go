package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/phrazzld/scry-decks/internal/api"
	"github.com/phrazzld/scry-decks/internal/platform/clock"
	"github.com/phrazzld/scry-decks/internal/service/auth"
	"github.com/phrazzld/scry-decks/internal/service/study"
	"github.com/phrazzld/scry-decks/internal/task"
)

const (
	sessionSweepInterval = time.Minute
	stuckImportAge       = 30 * time.Minute
	readHeaderTimeout    = 10 * time.Second
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the import workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.serve(cmd.Context())
		},
	}
}

func (c *cli) serve(ctx context.Context) error {
	cfg, log := c.cfg, c.logger

	app, err := newApplication(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.close(); err != nil {
			log.Error("failed to release resources", slog.String("error", err.Error()))
		}
	}()

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to set up token verification: %w", err)
	}

	runner := task.NewTaskRunner(app.tasks, task.TaskRunnerConfig{
		WorkerCount:  cfg.Import.Workers,
		QueueSize:    cfg.Import.QueueSize,
		StuckTaskAge: stuckImportAge,
	}, log)
	if err := runner.Start(); err != nil {
		return fmt.Errorf("failed to start import workers: %w", err)
	}
	defer runner.Stop()

	sessions := study.NewManager(app.reviewer, cfg.Session, log)

	router := api.NewRouter(api.RouterDeps{
		JWT:      jwtService,
		Cards:    api.NewCardHandler(app.reviewer, log),
		Decks:    api.NewDeckHandler(app.decks, log),
		Sessions: api.NewSessionHandler(sessions, log),
		Imports: api.NewImportHandler(runner, app.tasks, app.importer, api.ImportLimits{
			MaxArchiveBytes: cfg.Import.MaxArchiveBytes,
			RatePerMinute:   cfg.Import.RatePerMinute,
			Burst:           cfg.Import.Burst,
		}, clock.New(), log),
		DB:     app.db,
		Logger: log,
	})

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting HTTP server", slog.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return sessions.Run(gCtx, sessionSweepInterval)
	})

	g.Go(func() error {
		<-gCtx.Done()
		log.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}
