// internal/app/features/passwordrestore/routes.go
package passwordrestore

import "github.com/go-chi/chi/v5"

// Routes mounts under /api/auth.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/password-restore", h.HandleRestore)
	r.Post("/password-reset", h.HandleReset)
	return r
}
