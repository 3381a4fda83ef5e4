// internal/app/features/login/routes.go
package login

import "github.com/go-chi/chi/v5"

// Routes serves POST / under both /login (forms) and /api/auth/login (JSON).
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.HandleLogin)
	return r
}
