// internal/app/features/qrscanner/routes.go
package qrscanner

import (
	"github.com/dalemusser/tellevo/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sess *auth.Session) chi.Router {
	r := chi.NewRouter()
	r.Use(sess.RequireSignedIn)
	r.Post("/scan", h.HandleScan)
	return r
}
