package http

import (
	"net/http"
	"time"

	httpmw "github.com/fanforge/forum-service/internal/transport/http/middleware"
	"github.com/fanforge/forum-service/internal/transport/ws"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *Handler, tokens httpmw.TokenVerifier, wsServer *ws.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewareChi.RequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(httpmw.WithRequestLoggerCtx)
	r.Use(httpmw.RequestLogger)
	r.Use(middlewareChi.Recoverer)

	// channel endpoint authenticates via query token inside the handler
	r.Get("/ws/forums/{id}", wsServer.HandleWS)

	r.Group(func(pr chi.Router) {
		pr.Use(httpmw.AuthMiddleware(tokens))
		pr.Use(middlewareChi.Timeout(30 * time.Second))

		pr.Route("/communities", func(cm chi.Router) {
			cm.Post("/", h.CreateCommunity)
			cm.Get("/{id}", h.GetCommunity)
			cm.Post("/{id}/subscribe", h.Subscribe)
		})

		pr.Route("/forums/{id}", func(fr chi.Router) {
			fr.Get("/", h.GetForum)
			fr.Get("/messages", h.ListMessages)
			fr.Post("/messages", h.PostMessage)
			fr.Post("/messages/{mid}/reactions", h.ToggleReaction)
			fr.Put("/messages/{mid}/pin", h.SetPin)
		})

		pr.Get("/users/{id}", h.GetUser)
		pr.Put("/users/{id}", h.UpsertUser)
	})

	// health
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
