// internal/app/features/logout/handler.go
package logout

import (
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/tellevo/internal/app/features/errors"
	"github.com/dalemusser/tellevo/internal/app/system/auth"
	"github.com/dalemusser/tellevo/internal/app/system/timeouts"
	"go.uber.org/zap"
)

type Handler struct {
	Auth   *auth.Session
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger
}

func NewHandler(sess *auth.Session, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Auth: sess, ErrLog: errLog, Log: logger}
}

// ServeLogout handles POST /api/auth/logout and POST /logout.
//
// The session behind the caller's token is closed and the cookie expired.
// A missing or stale token still succeeds. Browsers are sent to /login;
// API callers get 204.
func (h *Handler) ServeLogout(w http.ResponseWriter, r *http.Request) {
	token := h.Auth.TokenFromRequest(r)

	if token != "" {
		ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "logout")
		defer cancel()
		if err := h.Auth.Logout(ctx, token); err != nil {
			h.ErrLog.Respond(w, r, "Could not sign out", err)
			return
		}
	}

	if c := h.Auth.Cookies(); c != nil {
		if err := c.Clear(w, r); err != nil {
			h.Log.Error("logout: clear cookie", zap.Error(err))
		}
	}

	if isBrowser(r) {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func isBrowser(r *http.Request) bool {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
