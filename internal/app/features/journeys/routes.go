// internal/app/features/journeys/routes.go
package journeys

import (
	"github.com/dalemusser/tellevo/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sess *auth.Session) chi.Router {
	r := chi.NewRouter()
	r.Use(sess.RequireSignedIn)

	r.Get("/", h.ServeList)
	r.Post("/", h.HandleCreate)
	r.Get("/live", h.ServeLive)
	r.Get("/mine", h.ServeMine)
	r.Get("/mine/live", h.ServeMineLive)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.ServeJourney)
		r.Delete("/", h.HandleDelete)
		r.Get("/route", h.ServeRoute)
		r.Get("/qr", h.ServeQR)
		r.Post("/join", h.HandleJoin)
		r.Post("/leave", h.HandleLeave)
	})
	return r
}
