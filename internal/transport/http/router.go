package http

import (
	"net/http"
	"time"

	httpmw "github.com/aditya9522/mindporium/internal/transport/http/middleware"
	"github.com/aditya9522/mindporium/internal/transport/ws"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *Handler, verifier httpmw.TokenVerifier, wsServer *ws.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewareChi.RequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(middlewareChi.Recoverer)

	// WS endpoint: личность — через access_token в query, апгрейду Bearer не нужен
	r.Get("/ws/classroom/{id}", wsServer.HandleWS)

	r.Group(func(pr chi.Router) {
		pr.Use(httpmw.AuthMiddleware(verifier))
		pr.Use(middlewareChi.Timeout(30 * time.Second))

		pr.Route("/attendance", func(ar chi.Router) {
			ar.Get("/me", h.MyAttendance)
			ar.Get("/classroom/{id}", h.ClassroomAttendance)
		})
	})

	r.Get("/healthz", h.Health)

	return r
}
