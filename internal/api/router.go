package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	apiMiddleware "github.com/phrazzld/scry-decks/internal/api/middleware"
	"github.com/phrazzld/scry-decks/internal/service/auth"
)

// RouterDeps holds what NewRouter wires into the routes.
type RouterDeps struct {
	JWT      auth.JWTService
	Cards    *CardHandler
	Decks    *DeckHandler
	Sessions *SessionHandler
	Imports  *ImportHandler
	DB       Pinger
	Logger   *slog.Logger
}

// NewRouter creates the application router with all routes and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.NewTraceMiddleware(log))
	r.Use(middleware.Recoverer)

	authMiddleware := apiMiddleware.NewAuthMiddleware(deps.JWT)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			// Decks
			r.Get("/decks", deps.Decks.ListDecks)
			r.Delete("/decks/{id}", deps.Decks.DeleteDeck)

			// Queue and reviews
			r.Get("/queue", deps.Cards.GetQueue)
			r.Get("/cards/{id}/preview", deps.Cards.PreviewIntervals)
			r.Post("/cards/{id}/answer", deps.Cards.SubmitAnswer)

			// Study sessions
			r.Post("/sessions", deps.Sessions.StartSession)
			r.Get("/sessions/{id}/next", deps.Sessions.Next)
			r.Post("/sessions/{id}/answer", deps.Sessions.Answer)
			r.Delete("/sessions/{id}", deps.Sessions.EndSession)

			// Imports
			r.Post("/imports", deps.Imports.SubmitImport)
			r.Get("/imports/{id}", deps.Imports.GetImport)
		})
	})

	r.Get("/health", HealthHandler(deps.DB, log))

	return r
}
