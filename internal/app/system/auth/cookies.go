// internal/app/system/auth/cookies.go
package auth

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

const (
	DefaultCookieName = "tellevo-session"

	tokenKey = "token"
	emailKey = "email"
)

// CookieManager keeps the auth token and email in a signed browser cookie,
// the web counterpart of the token a mobile client stores locally.
type CookieManager struct {
	store *sessions.CookieStore
	name  string
}

// NewCookieManager creates the cookie store. With secure=true cookies are
// Secure and SameSite=None; over plain-http development Lax is used.
func NewCookieManager(sessionKey, name, domain string, maxAge time.Duration, secure bool, logger *zap.Logger) (*CookieManager, error) {
	if sessionKey == "" {
		return nil, fmt.Errorf("session key is empty; provide at least 32 random chars")
	}
	if len(sessionKey) < 32 {
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(sessionKey)))
	}
	if name == "" {
		name = DefaultCookieName
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	store.Options = &sessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if secure {
		store.Options.SameSite = http.SameSiteNoneMode
	}

	logger.Info("cookie store initialized",
		zap.String("name", name),
		zap.Bool("secure", secure),
		zap.String("domain", domain),
		zap.Duration("max_age", maxAge))

	return &CookieManager{store: store, name: name}, nil
}

// Save stores token and email in the cookie.
func (m *CookieManager) Save(w http.ResponseWriter, r *http.Request, token, email string) error {
	sess, _ := m.store.Get(r, m.name)
	sess.Values[tokenKey] = token
	sess.Values[emailKey] = email
	return sess.Save(r, w)
}

// Token returns the token in the cookie, or "".
func (m *CookieManager) Token(r *http.Request) string {
	sess, err := m.store.Get(r, m.name)
	if err != nil {
		return ""
	}
	v, _ := sess.Values[tokenKey].(string)
	return v
}

// Email returns the email in the cookie, or "".
func (m *CookieManager) Email(r *http.Request) string {
	sess, err := m.store.Get(r, m.name)
	if err != nil {
		return ""
	}
	v, _ := sess.Values[emailKey].(string)
	return v
}

// Clear expires the cookie.
func (m *CookieManager) Clear(w http.ResponseWriter, r *http.Request) error {
	sess, _ := m.store.Get(r, m.name)
	sess.Values = map[interface{}]interface{}{}
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}
