package testutil

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/tellevo/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures inserts documents straight into the test database, bypassing
// the stores under test.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser inserts a user profile.
func (f *Fixtures) CreateUser(ctx context.Context, name, email string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	u := models.User{
		ID:           primitive.NewObjectID(),
		Name:         name,
		NameCI:       text.Fold(name),
		Email:        strings.ToLower(email),
		RegisteredAt: now,
		UpdatedAt:    now,
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("CreateUser(%q): %v", email, err)
	}
	return u
}

// CreateJourney inserts a journey driven by driver with the given passengers.
func (f *Fixtures) CreateJourney(ctx context.Context, driver string, capacity int, passengers ...string) models.Journey {
	f.t.Helper()

	if passengers == nil {
		passengers = []string{}
	}
	id := primitive.NewObjectID()
	j := models.Journey{
		ID:          id,
		UID:         id.Hex(),
		CreatorName: "Fixture Driver",
		Email:       driver,
		Driver:      driver,
		Plate:       "ABC123",
		Capacity:    capacity,
		CreatedAt:   time.Now().UTC(),
		Points: []models.GeoPoint{
			{Lat: 4.6097, Lng: -74.0817},
			{Lat: 4.6280, Lng: -74.0650},
			{Lat: 4.6533, Lng: -74.0836},
		},
		Passengers: passengers,
	}
	if _, err := f.db.Collection("journeys").InsertOne(ctx, j); err != nil {
		f.t.Fatalf("CreateJourney(%q): %v", driver, err)
	}
	return j
}
