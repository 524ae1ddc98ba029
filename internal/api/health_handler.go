package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/scry-decks/internal/api/shared"
	"github.com/phrazzld/scry-decks/internal/platform/logger"
	"github.com/phrazzld/scry-decks/internal/redact"
)

const healthPingTimeout = 2 * time.Second

// Pinger checks a dependency is reachable. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler returns a handler for GET /health. A nil db reports only
// that the process is up.
func HealthHandler(db Pinger, log *slog.Logger) http.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if db == nil {
			shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{Status: "ok", Database: "unchecked"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			logger.FromContextOrDefault(r.Context(), log).Error("health check failed",
				slog.String("error", redact.Error(err)))
			shared.RespondWithJSON(w, r, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Database: "down"})
			return
		}
		shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{Status: "ok", Database: "up"})
	}
}
