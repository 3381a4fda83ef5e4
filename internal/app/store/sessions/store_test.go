package sessions_test

import (
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/tellevo/internal/app/store/sessions"
	"github.com/dalemusser/tellevo/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func meta() sessions.Meta {
	return sessions.Meta{
		UserID:    primitive.NewObjectID(),
		Email:     "rider@example.com",
		IP:        "192.168.1.1",
		UserAgent: "Mozilla/5.0",
	}
}

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := sessions.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	m := meta()
	sess, err := store.Create(ctx, m, time.Hour)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if sess.ID.IsZero() {
		t.Error("expected ID to be assigned")
	}
	if sess.UserID != m.UserID || sess.Email != m.Email {
		t.Errorf("identity: got %v/%q", sess.UserID, sess.Email)
	}
	if got := sess.ExpiresAt.Sub(sess.LoginAt); got != time.Hour {
		t.Errorf("ttl: got %v, want 1h", got)
	}
	if !sess.Active(time.Now()) {
		t.Error("new session should be active")
	}

	loaded, err := store.GetByID(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if loaded.IP != m.IP {
		t.Errorf("IP: got %q", loaded.IP)
	}
}

func TestStore_GetByID_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := sessions.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.GetByID(ctx, primitive.NewObjectID()); !errors.Is(err, sessions.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_Close(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := sessions.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	sess, err := store.Create(ctx, meta(), time.Hour)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	closed, err := store.Close(ctx, sess.ID, sessions.EndLogout)
	if err != nil || !closed {
		t.Fatalf("Close: closed=%v err=%v", closed, err)
	}
	again, err := store.Close(ctx, sess.ID, sessions.EndLogout)
	if err != nil || again {
		t.Errorf("second Close: closed=%v err=%v", again, err)
	}

	loaded, _ := store.GetByID(ctx, sess.ID)
	if loaded.LogoutAt == nil || loaded.EndReason != sessions.EndLogout {
		t.Errorf("closed session: logout_at=%v reason=%q", loaded.LogoutAt, loaded.EndReason)
	}
	if loaded.Active(time.Now()) {
		t.Error("closed session should not be active")
	}

	if ok, _ := store.Touch(ctx, sess.ID); ok {
		t.Error("Touch should not update a closed session")
	}
}

func TestStore_CloseExpired(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := sessions.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	expired, _ := store.Create(ctx, meta(), time.Millisecond)
	idle, _ := store.Create(ctx, meta(), time.Hour)
	fresh, _ := store.Create(ctx, meta(), time.Hour)

	_, err := db.Collection("sessions").UpdateByID(ctx, idle.ID, bson.M{
		"$set": bson.M{"last_active_at": time.Now().UTC().Add(-2 * time.Hour)},
	})
	if err != nil {
		t.Fatalf("backdate: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	ids, err := store.CloseExpired(ctx, time.Hour)
	if err != nil {
		t.Fatalf("CloseExpired: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("closed: got %d, want 2", len(ids))
	}

	for id, reason := range map[primitive.ObjectID]string{expired.ID: sessions.EndExpired, idle.ID: sessions.EndInactive} {
		s, _ := store.GetByID(ctx, id)
		if s.EndReason != reason {
			t.Errorf("session %s: reason %q, want %q", id.Hex(), s.EndReason, reason)
		}
	}
	if s, _ := store.GetByID(ctx, fresh.ID); s.LogoutAt != nil {
		t.Error("fresh session should stay open")
	}
}
