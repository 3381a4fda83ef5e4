// internal/app/system/identity/provider.go
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/tellevo/internal/app/store/credentials"
	"github.com/dalemusser/tellevo/internal/app/store/resets"
	"github.com/dalemusser/tellevo/internal/app/system/inputval"
	"github.com/dalemusser/tellevo/internal/app/system/mailer"
	"github.com/dalemusser/tellevo/internal/app/system/normalize"
	"github.com/dustin/go-humanize"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Account is an authenticated identity.
type Account struct {
	ID    primitive.ObjectID
	Email string
}

// Provider is the identity contract the auth session depends on.
type Provider interface {
	SignUp(ctx context.Context, email, password string) (Account, error)
	SignIn(ctx context.Context, email, password string) (Account, error)
	SignOut(ctx context.Context, accountID primitive.ObjectID) error
	SendPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
}

// Sender delivers email.
type Sender interface {
	Send(ctx context.Context, e mailer.Email) error
}

// Config configures MongoProvider.
type Config struct {
	SiteName   string
	BaseURL    string // reset links point at BaseURL + "/password-restore?token=..."
	BcryptCost int
}

// MongoProvider keeps bcrypt credentials in MongoDB and sends reset links by email.
type MongoProvider struct {
	creds  *credentials.Store
	resets *resets.Store
	mail   Sender
	cfg    Config
	log    *zap.Logger
}

// NewMongoProvider wires the provider. mail may be nil, in which case reset
// links are only logged (development without an SMTP relay).
func NewMongoProvider(creds *credentials.Store, rs *resets.Store, mail Sender, cfg Config, logger *zap.Logger) *MongoProvider {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.SiteName == "" {
		cfg.SiteName = "TeLlevo"
	}
	return &MongoProvider{creds: creds, resets: rs, mail: mail, cfg: cfg, log: logger}
}

func (p *MongoProvider) SignUp(ctx context.Context, email, password string) (Account, error) {
	email = normalize.Email(email)
	if !inputval.IsValidEmail(email) {
		return Account{}, fail(CodeInvalidEmail, nil)
	}
	if len(password) < inputval.MinPasswordLen {
		return Account{}, fail(CodeWeakPassword, nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cfg.BcryptCost)
	if err != nil {
		return Account{}, fmt.Errorf("hash password: %w", err)
	}

	c, err := p.creds.Create(ctx, email, string(hash))
	if err != nil {
		if errors.Is(err, credentials.ErrDuplicateEmail) {
			return Account{}, fail(CodeEmailInUse, err)
		}
		return Account{}, err
	}
	return Account{ID: c.ID, Email: c.Email}, nil
}

func (p *MongoProvider) SignIn(ctx context.Context, email, password string) (Account, error) {
	email = normalize.Email(email)
	if !inputval.IsValidEmail(email) {
		return Account{}, fail(CodeInvalidEmail, nil)
	}

	c, err := p.creds.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			return Account{}, fail(CodeUserNotFound, err)
		}
		return Account{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)); err != nil {
		return Account{}, fail(CodeWrongPassword, err)
	}
	return Account{ID: c.ID, Email: c.Email}, nil
}

// SignOut has no server-side state to drop for password accounts.
func (p *MongoProvider) SignOut(ctx context.Context, accountID primitive.ObjectID) error {
	return nil
}

func (p *MongoProvider) SendPasswordReset(ctx context.Context, email string) error {
	email = normalize.Email(email)
	if !inputval.IsValidEmail(email) {
		return fail(CodeInvalidEmail, nil)
	}

	c, err := p.creds.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			return fail(CodeUserNotFound, err)
		}
		return err
	}

	token, err := p.resets.Create(ctx, c.ID, c.Email)
	if err != nil {
		return fmt.Errorf("create reset: %w", err)
	}
	link := p.cfg.BaseURL + "/password-restore?token=" + token

	if p.mail == nil {
		p.log.Warn("mailer not configured; password reset link logged instead",
			zap.String("email", c.Email),
			zap.String("link", link))
		return nil
	}

	msg := mailer.BuildPasswordResetEmail(c.Email, mailer.PasswordResetData{
		SiteName:  p.cfg.SiteName,
		ResetLink: link,
		ExpiresIn: expiresIn(p.resets.Expiry()),
	})
	return p.mail.Send(ctx, msg)
}

func (p *MongoProvider) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < inputval.MinPasswordLen {
		return fail(CodeWeakPassword, nil)
	}

	r, err := p.resets.Consume(ctx, token)
	if err != nil {
		if errors.Is(err, resets.ErrNotFound) ||
			errors.Is(err, resets.ErrInvalidToken) ||
			errors.Is(err, resets.ErrTooManyAttempts) {
			return fail(CodeInvalidResetToken, err)
		}
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), p.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := p.creds.SetPasswordHash(ctx, r.AccountID, string(hash)); err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			return fail(CodeUserNotFound, err)
		}
		return err
	}
	return nil
}

func expiresIn(d time.Duration) string {
	now := time.Now()
	return strings.TrimSpace(humanize.RelTime(now, now.Add(d), "", ""))
}
