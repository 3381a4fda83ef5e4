// internal/app/system/auth/middleware.go
package auth

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/dalemusser/tellevo/internal/app/system/alert"
	"github.com/dalemusser/tellevo/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// SessionUser is the signed-in caller injected into the request context.
type SessionUser struct {
	ID        string
	Name      string
	Email     string
	SessionID string
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the user placed in context by RequireSignedIn.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok
}

// WithTestUser injects u the way RequireSignedIn does. Tests only.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

// TokenFromRequest finds the caller's token: Authorization Bearer header,
// then the session cookie, then a "token" query parameter (WebSocket
// clients that cannot set headers).
func (s *Session) TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if scheme, tok, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(tok)
		}
	}
	if s.cookies != nil {
		if tok := s.cookies.Token(r); tok != "" {
			return tok
		}
	}
	return r.URL.Query().Get("token")
}

// RequireSignedIn admits callers whose session is signed in. It waits at
// most timeouts.Guard() for the first auth state; on timeout, error or a
// signed-out state HTML callers are sent to /login and API callers get 401.
func (s *Session) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := s.TokenFromRequest(r)
		if token == "" {
			deny(w, r)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Guard())
		defer cancel()

		sub, err := s.AuthState(ctx, token)
		if err != nil {
			s.log.Warn("route guard: auth state unavailable", zap.String("path", r.URL.Path), zap.Error(err))
			deny(w, r)
			return
		}
		defer sub.Cancel()

		select {
		case signedIn := <-sub.Updates():
			if !signedIn {
				deny(w, r)
				return
			}
		case <-ctx.Done():
			s.log.Warn("route guard: timed out waiting for auth state",
				zap.String("path", r.URL.Path),
				zap.Duration("timeout", timeouts.Guard()))
			deny(w, r)
			return
		}

		claims, err := s.tokens.Parse(token)
		if err != nil {
			deny(w, r)
			return
		}
		if sid, err := primitive.ObjectIDFromHex(claims.SessionID); err == nil {
			if _, err := s.sessions.Touch(ctx, sid); err != nil {
				s.log.Debug("session touch failed", zap.String("session", claims.SessionID), zap.Error(err))
			}
		}

		next.ServeHTTP(w, withUser(r, &SessionUser{
			ID:        claims.UserID,
			Name:      claims.Name,
			Email:     claims.Email,
			SessionID: claims.SessionID,
		}))
	})
}

func deny(w http.ResponseWriter, r *http.Request) {
	if wantsHTML(r) {
		http.Redirect(w, r, "/login?return="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
		return
	}
	alert.WriteJSON(w, http.StatusUnauthorized, alert.New(alert.Warning, "Sign in required", "Please sign in to continue."))
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
