package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/classline/livepoll-backend/internal/session"
	"github.com/classline/livepoll-backend/internal/ws"
)

// SetupRoutes builds the full HTTP surface: the REST poll endpoints,
// the health check and the websocket upgrade.
func SetupRoutes(sess *session.Session, st PollStore, log *zap.Logger, clientOrigin string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{clientOrigin},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}).Handler)

	polls := NewPollHandler(st, log)
	r.Route("/api/polls", func(r chi.Router) {
		r.Post("/", polls.Create)
		r.Get("/active", polls.Active)
		r.Get("/history", polls.History)
	})

	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(sess, log, []string{clientOrigin}))

	return r
}
