package resets_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/tellevo/internal/app/store/resets"
	"github.com/dalemusser/tellevo/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestNew_DefaultExpiry(t *testing.T) {
	db := testutil.SetupTestDB(t)

	if s := resets.New(db, 0); s.Expiry() != resets.DefaultExpiry {
		t.Errorf("expected default expiry %v, got %v", resets.DefaultExpiry, s.Expiry())
	}
	if s := resets.New(db, 30*time.Minute); s.Expiry() != 30*time.Minute {
		t.Errorf("expected custom expiry, got %v", s.Expiry())
	}
}

func TestStore_CreateAndConsume(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := resets.New(db, resets.DefaultExpiry)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	accountID := primitive.NewObjectID()
	token, err := store.Create(ctx, accountID, "a@example.com")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !strings.Contains(token, ".") {
		t.Fatalf("token should be <id>.<secret>, got %q", token)
	}

	r, err := store.Consume(ctx, token)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if r.AccountID != accountID {
		t.Errorf("AccountID: got %v, want %v", r.AccountID, accountID)
	}

	// Single use
	if _, err := store.Consume(ctx, token); !errors.Is(err, resets.ErrNotFound) {
		t.Errorf("second Consume: got %v, want ErrNotFound", err)
	}
}

func TestStore_Create_ReplacesPrevious(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := resets.New(db, resets.DefaultExpiry)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	accountID := primitive.NewObjectID()
	old, err := store.Create(ctx, accountID, "a@example.com")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := store.Create(ctx, accountID, "a@example.com"); err != nil {
		t.Fatalf("second Create failed: %v", err)
	}

	if _, err := store.Consume(ctx, old); !errors.Is(err, resets.ErrNotFound) {
		t.Errorf("old token: got %v, want ErrNotFound", err)
	}
}

func TestStore_Consume_WrongSecret(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := resets.New(db, resets.DefaultExpiry)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	token, err := store.Create(ctx, primitive.NewObjectID(), "a@example.com")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	id, _, _ := strings.Cut(token, ".")

	for i := 0; i < resets.MaxAttempts; i++ {
		if _, err := store.Consume(ctx, id+".deadbeef"); !errors.Is(err, resets.ErrInvalidToken) {
			t.Fatalf("attempt %d: got %v, want ErrInvalidToken", i, err)
		}
	}
	if _, err := store.Consume(ctx, token); !errors.Is(err, resets.ErrTooManyAttempts) {
		t.Errorf("after max attempts: got %v, want ErrTooManyAttempts", err)
	}
}

func TestStore_Consume_Malformed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := resets.New(db, resets.DefaultExpiry)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for _, tok := range []string{"", "nodot", "zzz.abc", primitive.NewObjectID().Hex() + "."} {
		if _, err := store.Consume(ctx, tok); !errors.Is(err, resets.ErrNotFound) {
			t.Errorf("Consume(%q): got %v, want ErrNotFound", tok, err)
		}
	}
}
