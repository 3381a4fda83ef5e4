// internal/app/features/pages/routes.go
package pages

import (
	"github.com/dalemusser/tellevo/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// PublicRoutes registers the pages anyone can open.
func PublicRoutes(r chi.Router, h *Handler) {
	r.Get("/", RedirectToLogin)
	r.Get("/login", h.ServeLogin)
	r.Get("/register", h.ServeRegister)
	r.Get("/password-restore", h.ServePasswordRestore)
}

// HomeRoutes is mounted at /home behind the route guard.
func HomeRoutes(h *Handler, sess *auth.Session) chi.Router {
	r := chi.NewRouter()
	r.Use(sess.RequireSignedIn)
	r.Get("/", h.ServeHome)
	r.Get("/journeys", h.ServeJourneys)
	r.Get("/map", h.ServeMap)
	r.Get("/my-journeys", h.ServeMyJourneys)
	r.Get("/qr-scanner", h.ServeQRScanner)
	return r
}
