package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/tellevo/internal/app/store/credentials"
	"github.com/dalemusser/tellevo/internal/app/store/resets"
	"github.com/dalemusser/tellevo/internal/app/store/sessions"
	userstore "github.com/dalemusser/tellevo/internal/app/store/users"
	"github.com/dalemusser/tellevo/internal/app/system/auth"
	"github.com/dalemusser/tellevo/internal/app/system/identity"
	"github.com/dalemusser/tellevo/internal/app/system/mailer"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	TestTokenSecret = "test-token-secret-0123456789abcdef"
	TestSessionKey  = "test-session-key-0123456789abcdef"
)

// Outbox records the emails the identity provider sends.
type Outbox struct {
	mu   sync.Mutex
	sent []mailer.Email
}

func (o *Outbox) Send(ctx context.Context, e mailer.Email) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, e)
	return nil
}

// Sent returns a copy of the recorded emails.
func (o *Outbox) Sent() []mailer.Email {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]mailer.Email(nil), o.sent...)
}

// AuthStack is a Mongo-backed auth.Session for handler tests.
type AuthStack struct {
	Session  *auth.Session
	Users    *userstore.Store
	Sessions *sessions.Store
	Outbox   *Outbox
}

// NewAuthStack wires the real identity provider and stores against db.
// The session is closed on test cleanup.
func NewAuthStack(t *testing.T, db *mongo.Database) *AuthStack {
	t.Helper()
	logger := zap.NewNop()

	tokens, err := auth.NewTokens(TestTokenSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	cookies, err := auth.NewCookieManager(TestSessionKey, "", "", time.Hour, false, logger)
	if err != nil {
		t.Fatalf("NewCookieManager: %v", err)
	}

	st := &AuthStack{
		Users:    userstore.New(db),
		Sessions: sessions.New(db),
		Outbox:   &Outbox{},
	}
	provider := identity.NewMongoProvider(
		credentials.New(db),
		resets.New(db, time.Hour),
		st.Outbox,
		identity.Config{BaseURL: "http://localhost:8080", BcryptCost: bcrypt.MinCost},
		logger,
	)
	st.Session = auth.NewSession(auth.Deps{
		Identity: provider,
		Profiles: st.Users,
		Sessions: st.Sessions,
		Tokens:   tokens,
		Cookies:  cookies,
		Log:      logger,
	})
	t.Cleanup(st.Session.Close)
	return st
}

// SignUp registers a user and logs them in, returning the login result.
func (st *AuthStack) SignUp(t *testing.T, name, email, password string) auth.LoginResult {
	t.Helper()
	ctx, cancel := TestContext()
	defer cancel()

	if _, err := st.Session.Register(ctx, name, email, password); err != nil {
		t.Fatalf("Register(%q): %v", email, err)
	}
	res, err := st.Session.Login(ctx, email, password, auth.LoginMeta{IP: "127.0.0.1"})
	if err != nil {
		t.Fatalf("Login(%q): %v", email, err)
	}
	return res
}
