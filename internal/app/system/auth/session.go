// internal/app/system/auth/session.go
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/tellevo/internal/app/store/audit"
	"github.com/dalemusser/tellevo/internal/app/store/sessions"
	"github.com/dalemusser/tellevo/internal/app/system/auditlog"
	"github.com/dalemusser/tellevo/internal/app/system/htmlsanitize"
	"github.com/dalemusser/tellevo/internal/app/system/identity"
	"github.com/dalemusser/tellevo/internal/app/system/inputval"
	"github.com/dalemusser/tellevo/internal/app/system/normalize"
	"github.com/dalemusser/tellevo/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ProfileStore holds user profiles.
type ProfileStore interface {
	Create(ctx context.Context, u models.User) (models.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// SessionStore persists sessions.
type SessionStore interface {
	Create(ctx context.Context, m sessions.Meta, ttl time.Duration) (sessions.Session, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (sessions.Session, error)
	Close(ctx context.Context, id primitive.ObjectID, reason string) (bool, error)
	Touch(ctx context.Context, id primitive.ObjectID) (bool, error)
}

// Deps wires a Session.
type Deps struct {
	Identity identity.Provider
	Profiles ProfileStore
	Sessions SessionStore
	Tokens   *Tokens
	Cookies  *CookieManager // optional; browsers only
	Audit    *auditlog.Logger
	Log      *zap.Logger
}

// Session is the process-wide authentication context. It is built once at
// startup, shared by every feature and closed at shutdown.
type Session struct {
	identity identity.Provider
	profiles ProfileStore
	sessions SessionStore
	tokens   *Tokens
	cookies  *CookieManager
	audit    *auditlog.Logger
	log      *zap.Logger
	broker   *stateBroker
}

// NewSession creates the auth session.
func NewSession(d Deps) *Session {
	return &Session{
		identity: d.Identity,
		profiles: d.Profiles,
		sessions: d.Sessions,
		tokens:   d.Tokens,
		cookies:  d.Cookies,
		audit:    d.Audit,
		log:      d.Log,
		broker:   newStateBroker(),
	}
}

// Cookies returns the cookie manager, or nil when none is configured.
func (s *Session) Cookies() *CookieManager { return s.cookies }

// LoginMeta describes the signing-in client.
type LoginMeta struct {
	IP        string
	UserAgent string
}

// LoginResult is what a client keeps after signing in.
type LoginResult struct {
	Token     string    `json:"token"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Register creates the identity account and the user profile.
func (s *Session) Register(ctx context.Context, name, email, password string) (models.User, error) {
	email = normalize.Email(email)
	name = normalize.Name(htmlsanitize.PlainText(name))
	if name == "" {
		s.audit.RegisterFailed(ctx, email, ErrNameRequired.Error())
		return models.User{}, &Error{Message: "Name is required.", Cause: ErrNameRequired}
	}

	acct, err := s.identity.SignUp(ctx, email, password)
	if err != nil {
		s.audit.RegisterFailed(ctx, email, err.Error())
		return models.User{}, translate(err)
	}

	u, err := s.profiles.Create(ctx, models.User{ID: acct.ID, Name: name, Email: acct.Email})
	if err != nil {
		s.log.Error("profile create failed after sign-up",
			zap.String("account_id", acct.ID.Hex()),
			zap.String("email", acct.Email),
			zap.Error(err))
		s.audit.RegisterFailed(ctx, email, err.Error())
		return models.User{}, translate(fmt.Errorf("create profile: %w", err))
	}

	s.audit.RegisterSuccess(ctx, u.ID, u.Email)
	s.log.Info("user registered", zap.String("email", u.Email))
	return u, nil
}

// Login signs in and opens a session.
func (s *Session) Login(ctx context.Context, email, password string, meta LoginMeta) (LoginResult, error) {
	email = normalize.Email(email)

	acct, err := s.identity.SignIn(ctx, email, password)
	if err != nil {
		s.audit.LoginFailed(ctx, loginFailureEvent(err), email, err.Error())
		return LoginResult{}, translate(err)
	}

	name := acct.Email
	if u, err := s.profiles.GetByID(ctx, acct.ID); err == nil {
		name = u.Name
	} else {
		s.log.Warn("signed-in account has no profile", zap.String("email", acct.Email), zap.Error(err))
	}

	sess, err := s.sessions.Create(ctx, sessions.Meta{
		UserID:    acct.ID,
		Email:     acct.Email,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
	}, s.tokens.TTL())
	if err != nil {
		return LoginResult{}, translate(fmt.Errorf("open session: %w", err))
	}

	token, err := s.tokens.Issue(sess.ID.Hex(), acct.ID.Hex(), acct.Email, name, sess.ExpiresAt)
	if err != nil {
		return LoginResult{}, translate(fmt.Errorf("issue token: %w", err))
	}

	s.audit.LoginSuccess(ctx, acct.ID, acct.Email, sess.ID.Hex())
	s.log.Info("user logged in", zap.String("email", acct.Email), zap.String("session", sess.ID.Hex()))
	return LoginResult{
		Token:     token,
		Email:     acct.Email,
		Name:      name,
		UserID:    acct.ID.Hex(),
		ExpiresAt: sess.ExpiresAt,
	}, nil
}

func loginFailureEvent(err error) string {
	switch identity.Code(err) {
	case identity.CodeUserNotFound:
		return audit.EventLoginFailedUserNotFound
	case identity.CodeWrongPassword:
		return audit.EventLoginFailedWrongPass
	}
	return audit.EventLoginFailed
}

// Logout closes the token's session and pushes false to its state
// subscribers. Logging out with an invalid or expired token is a no-op.
func (s *Session) Logout(ctx context.Context, token string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil
	}
	sid, err := primitive.ObjectIDFromHex(claims.SessionID)
	if err != nil {
		return nil
	}

	if _, err := s.sessions.Close(ctx, sid, sessions.EndLogout); err != nil && !errors.Is(err, sessions.ErrNotFound) {
		return translate(fmt.Errorf("close session: %w", err))
	}
	s.broker.publish(claims.SessionID, false)

	if uid, err := primitive.ObjectIDFromHex(claims.UserID); err == nil {
		if err := s.identity.SignOut(ctx, uid); err != nil {
			s.log.Warn("identity sign-out failed", zap.String("email", claims.Email), zap.Error(err))
		}
	}

	s.audit.Logout(ctx, claims.Email, claims.SessionID)
	s.log.Info("user logged out", zap.String("email", claims.Email), zap.String("session", claims.SessionID))
	return nil
}

// PasswordRestore checks the email format and has the identity provider
// send a reset link.
func (s *Session) PasswordRestore(ctx context.Context, email string) error {
	email = normalize.Email(email)
	if !inputval.IsValidEmail(email) {
		return translate(&identity.ProviderError{Code: identity.CodeInvalidEmail})
	}
	err := s.identity.SendPasswordReset(ctx, email)
	s.audit.PasswordResetRequested(ctx, email, err)
	if err != nil {
		return translate(err)
	}
	return nil
}

// PasswordReset completes a reset started by PasswordRestore.
func (s *Session) PasswordReset(ctx context.Context, token, newPassword string) error {
	err := s.identity.ConfirmPasswordReset(ctx, token, newPassword)
	s.audit.PasswordResetCompleted(ctx, err)
	if err != nil {
		return translate(err)
	}
	return nil
}

// AuthState subscribes to the signed-in state of token's session. The first
// value is resolved from the session store; false follows when the session
// is logged out or expires. Invalid tokens yield a single false.
func (s *Session) AuthState(ctx context.Context, token string) (*StateSubscription, error) {
	claims, perr := s.tokens.Parse(token)
	sid := ""
	if perr == nil {
		sid = claims.SessionID
	}

	// Subscribe before reading the store so a concurrent logout is not lost.
	sub, err := s.broker.subscribe(ctx, sid)
	if err != nil {
		return nil, err
	}
	if perr != nil {
		s.broker.seed(sub, false)
		return sub, nil
	}

	active, err := s.sessionActive(ctx, claims)
	if err != nil {
		sub.Cancel()
		return nil, err
	}
	s.broker.seed(sub, active)
	return sub, nil
}

func (s *Session) sessionActive(ctx context.Context, c *Claims) (bool, error) {
	id, err := primitive.ObjectIDFromHex(c.SessionID)
	if err != nil {
		return false, nil
	}
	sess, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return sess.Active(time.Now()), nil
}

// SessionEnded tells state subscribers that a session was closed outside
// Logout (expiry, inactivity).
func (s *Session) SessionEnded(id primitive.ObjectID) {
	s.broker.publish(id.Hex(), false)
	s.audit.SessionExpired(context.Background(), id.Hex())
}

// Subscribers returns the number of open auth state subscriptions.
func (s *Session) Subscribers() int { return s.broker.count() }

// Close ends every open auth state subscription.
func (s *Session) Close() {
	s.broker.close()
}
