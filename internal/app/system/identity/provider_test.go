package identity_test

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/dalemusser/tellevo/internal/app/store/credentials"
	"github.com/dalemusser/tellevo/internal/app/store/resets"
	"github.com/dalemusser/tellevo/internal/app/system/identity"
	"github.com/dalemusser/tellevo/internal/app/system/mailer"
	"github.com/dalemusser/tellevo/internal/testutil"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type outbox struct {
	sent []mailer.Email
}

func (o *outbox) Send(ctx context.Context, e mailer.Email) error {
	o.sent = append(o.sent, e)
	return nil
}

func newProvider(t *testing.T) (*identity.MongoProvider, *outbox) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	creds := credentials.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := creds.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes failed: %v", err)
	}
	box := &outbox{}
	p := identity.NewMongoProvider(creds, resets.New(db, 0), box, identity.Config{
		BaseURL:    "http://localhost:3000",
		BcryptCost: bcrypt.MinCost,
	}, zap.NewNop())
	return p, box
}

func TestSignUpSignIn(t *testing.T) {
	p, _ := newProvider(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	acct, err := p.SignUp(ctx, " Rider@Example.com ", "secret123")
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if acct.Email != "rider@example.com" {
		t.Errorf("Email: got %q", acct.Email)
	}

	got, err := p.SignIn(ctx, "rider@example.com", "secret123")
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if got.ID != acct.ID {
		t.Errorf("SignIn ID: got %v, want %v", got.ID, acct.ID)
	}
}

func TestProviderErrorCodes(t *testing.T) {
	p, _ := newProvider(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := p.SignUp(ctx, "rider@example.com", "secret123"); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	tests := []struct {
		name string
		run  func() error
		want string
	}{
		{"duplicate email", func() error { _, err := p.SignUp(ctx, "RIDER@example.com", "other1234"); return err }, identity.CodeEmailInUse},
		{"invalid email", func() error { _, err := p.SignUp(ctx, "not-an-email", "secret123"); return err }, identity.CodeInvalidEmail},
		{"weak password", func() error { _, err := p.SignUp(ctx, "new@example.com", "short"); return err }, identity.CodeWeakPassword},
		{"wrong password", func() error { _, err := p.SignIn(ctx, "rider@example.com", "nope-nope"); return err }, identity.CodeWrongPassword},
		{"unknown user", func() error { _, err := p.SignIn(ctx, "ghost@example.com", "secret123"); return err }, identity.CodeUserNotFound},
		{"reset unknown user", func() error { return p.SendPasswordReset(ctx, "ghost@example.com") }, identity.CodeUserNotFound},
		{"reset bad token", func() error { return p.ConfirmPasswordReset(ctx, "bogus.token", "newsecret1") }, identity.CodeInvalidResetToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			var pe *identity.ProviderError
			if !errors.As(err, &pe) {
				t.Fatalf("expected *ProviderError, got %T (%v)", err, err)
			}
			if pe.Code != tt.want {
				t.Errorf("code: got %q, want %q", pe.Code, tt.want)
			}
			if identity.Code(err) != tt.want {
				t.Errorf("Code(): got %q, want %q", identity.Code(err), tt.want)
			}
		})
	}
}

func TestPasswordResetFlow(t *testing.T) {
	p, box := newProvider(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := p.SignUp(ctx, "rider@example.com", "secret123"); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if err := p.SendPasswordReset(ctx, "rider@example.com"); err != nil {
		t.Fatalf("SendPasswordReset failed: %v", err)
	}
	if len(box.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(box.sent))
	}
	if !strings.Contains(box.sent[0].TextBody, "1 hour") {
		t.Errorf("expected expiry in body, got %q", box.sent[0].TextBody)
	}

	token := extractToken(t, box.sent[0].TextBody)
	if err := p.ConfirmPasswordReset(ctx, token, "brandnew99"); err != nil {
		t.Fatalf("ConfirmPasswordReset failed: %v", err)
	}

	if _, err := p.SignIn(ctx, "rider@example.com", "secret123"); identity.Code(err) != identity.CodeWrongPassword {
		t.Errorf("old password should fail, got %v", err)
	}
	if _, err := p.SignIn(ctx, "rider@example.com", "brandnew99"); err != nil {
		t.Errorf("new password should work: %v", err)
	}

	// Tokens are single use.
	if err := p.ConfirmPasswordReset(ctx, token, "another99"); identity.Code(err) != identity.CodeInvalidResetToken {
		t.Errorf("reused token: got %v", err)
	}
}

func extractToken(t *testing.T, body string) string {
	t.Helper()
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "http") {
			u, err := url.Parse(strings.TrimSpace(line))
			if err != nil {
				t.Fatalf("parse link: %v", err)
			}
			return u.Query().Get("token")
		}
	}
	t.Fatalf("no link in body %q", body)
	return ""
}
