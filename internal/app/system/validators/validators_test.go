package validators_test

import (
	"slices"
	"testing"
	"time"

	"github.com/dalemusser/tellevo/internal/app/system/validators"
	"github.com/dalemusser/tellevo/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func setup(t *testing.T) *mongo.Database {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := validators.EnsureAll(ctx, db, zap.NewNop()); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	return db
}

func validJourney() bson.M {
	return bson.M{
		"uid":              "",
		"driver":           "driver@example.com",
		"email":            "driver@example.com",
		"name_creator":     "Driver",
		"car_registration": "ABC 123",
		"capacity":         3,
		"creation_date":    time.Now().UTC(),
		"points":           bson.A{bson.M{"lat": 4.65, "lng": -74.05}},
		"passengers":       bson.A{},
	}
}

func TestEnsureAll_CreatesCollections(t *testing.T) {
	db := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		t.Fatalf("ListCollectionNames: %v", err)
	}
	for _, want := range []string{"users", "credentials", "journeys", "sessions", "password_resets", "audit_events"} {
		if !slices.Contains(names, want) {
			t.Errorf("expected collection %q", want)
		}
	}
}

func TestEnsureAll_Idempotent(t *testing.T) {
	db := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db, zap.NewNop()); err != nil {
		t.Fatalf("second EnsureAll failed: %v", err)
	}
}

func TestJourneysValidator(t *testing.T) {
	db := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	tests := []struct {
		name   string
		mutate func(bson.M)
		ok     bool
	}{
		{"valid", func(bson.M) {}, true},
		{"zero capacity", func(d bson.M) { d["capacity"] = 0 }, false},
		{"blank plate", func(d bson.M) { d["car_registration"] = "   " }, false},
		{"missing driver", func(d bson.M) { delete(d, "driver") }, false},
		{"empty route", func(d bson.M) { d["points"] = bson.A{} }, false},
		{"latitude out of range", func(d bson.M) { d["points"] = bson.A{bson.M{"lat": 91.0, "lng": 0.0}} }, false},
		{"duplicate passenger", func(d bson.M) { d["passengers"] = bson.A{"a@x.com", "a@x.com"} }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validJourney()
			tt.mutate(doc)
			_, err := db.Collection("journeys").InsertOne(ctx, doc)
			if tt.ok && err != nil {
				t.Errorf("expected insert to succeed: %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestUsersValidator(t *testing.T) {
	db := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	users := db.Collection("users")
	if _, err := users.InsertOne(ctx, bson.M{"name": "Ana", "email": "ana@example.com", "date_register": time.Now()}); err != nil {
		t.Errorf("valid user rejected: %v", err)
	}
	if _, err := users.InsertOne(ctx, bson.M{"name": "", "email": "b@example.com", "date_register": time.Now()}); err == nil {
		t.Error("expected blank name to be rejected")
	}
	if _, err := users.InsertOne(ctx, bson.M{"name": "Carl"}); err == nil {
		t.Error("expected missing email to be rejected")
	}
}

func TestSessionsValidator(t *testing.T) {
	db := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	now := time.Now()
	sessions := db.Collection("sessions")
	if _, err := sessions.InsertOne(ctx, bson.M{"user_id": primitive.NewObjectID(), "login_at": now, "expires_at": now}); err != nil {
		t.Errorf("valid session rejected: %v", err)
	}
	if _, err := sessions.InsertOne(ctx, bson.M{"user_id": primitive.NewObjectID(), "login_at": now, "expires_at": now, "end_reason": "bored"}); err == nil {
		t.Error("expected unknown end reason to be rejected")
	}
}
