package auth_test

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/tellevo/internal/app/store/sessions"
	userstore "github.com/dalemusser/tellevo/internal/app/store/users"
	"github.com/dalemusser/tellevo/internal/app/system/identity"
	"github.com/dalemusser/tellevo/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeIdentity struct {
	mu        sync.Mutex
	accounts  map[string]fakeAccount
	resetsFor []string
}

type fakeAccount struct {
	id       primitive.ObjectID
	password string
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{accounts: map[string]fakeAccount{}}
}

func (f *fakeIdentity) SignUp(ctx context.Context, email, password string) (identity.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[email]; ok {
		return identity.Account{}, &identity.ProviderError{Code: identity.CodeEmailInUse}
	}
	if len(password) < 8 {
		return identity.Account{}, &identity.ProviderError{Code: identity.CodeWeakPassword}
	}
	a := fakeAccount{id: primitive.NewObjectID(), password: password}
	f.accounts[email] = a
	return identity.Account{ID: a.id, Email: email}, nil
}

func (f *fakeIdentity) SignIn(ctx context.Context, email, password string) (identity.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[email]
	if !ok {
		return identity.Account{}, &identity.ProviderError{Code: identity.CodeUserNotFound}
	}
	if a.password != password {
		return identity.Account{}, &identity.ProviderError{Code: identity.CodeWrongPassword}
	}
	return identity.Account{ID: a.id, Email: email}, nil
}

func (f *fakeIdentity) SignOut(ctx context.Context, id primitive.ObjectID) error { return nil }

func (f *fakeIdentity) SendPasswordReset(ctx context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[email]; !ok {
		return &identity.ProviderError{Code: identity.CodeUserNotFound}
	}
	f.resetsFor = append(f.resetsFor, email)
	return nil
}

func (f *fakeIdentity) ConfirmPasswordReset(ctx context.Context, token, pw string) error {
	return &identity.ProviderError{Code: identity.CodeInvalidResetToken}
}

type fakeProfiles struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]models.User
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{users: map[primitive.ObjectID]models.User{}}
}

func (f *fakeProfiles) Create(ctx context.Context, u models.User) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u.RegisteredAt = time.Now().UTC()
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeProfiles) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, userstore.ErrNotFound
	}
	return &u, nil
}

type fakeSessions struct {
	mu    sync.Mutex
	byID  map[primitive.ObjectID]sessions.Session
	block bool // GetByID waits for ctx to end
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{byID: map[primitive.ObjectID]sessions.Session{}}
}

func (f *fakeSessions) Create(ctx context.Context, m sessions.Meta, ttl time.Duration) (sessions.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	s := sessions.Session{
		ID:           primitive.NewObjectID(),
		UserID:       m.UserID,
		Email:        m.Email,
		LoginAt:      now,
		ExpiresAt:    now.Add(ttl),
		LastActiveAt: now,
		IP:           m.IP,
	}
	f.byID[s.ID] = s
	return s, nil
}

func (f *fakeSessions) GetByID(ctx context.Context, id primitive.ObjectID) (sessions.Session, error) {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return sessions.Session{}, ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return sessions.Session{}, sessions.ErrNotFound
	}
	return s, nil
}

func (f *fakeSessions) Close(ctx context.Context, id primitive.ObjectID, reason string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return false, sessions.ErrNotFound
	}
	if s.LogoutAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	s.LogoutAt = &now
	s.EndReason = reason
	f.byID[id] = s
	return true, nil
}

func (f *fakeSessions) Touch(ctx context.Context, id primitive.ObjectID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok || s.LogoutAt != nil {
		return false, nil
	}
	s.LastActiveAt = time.Now().UTC()
	f.byID[id] = s
	return true, nil
}
