// internal/app/features/sessionstate/routes.go
package sessionstate

import "github.com/go-chi/chi/v5"

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeState)
	return r
}
