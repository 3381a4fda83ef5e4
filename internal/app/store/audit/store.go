// internal/app/store/audit/store.go
package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Event categories
const (
	CategoryAuth    = "auth"
	CategoryJourney = "journey"
)

// Auth event types
const (
	EventRegisterSuccess         = "register_success"
	EventRegisterFailed          = "register_failed"
	EventLoginSuccess            = "login_success"
	EventLoginFailedUserNotFound = "login_failed_user_not_found"
	EventLoginFailedWrongPass    = "login_failed_wrong_password"
	EventLoginFailedRateLimit    = "login_failed_rate_limit"
	EventLoginFailed             = "login_failed"
	EventLogout                  = "logout"
	EventSessionExpired          = "session_expired"
	EventPasswordResetRequested  = "password_reset_requested"
	EventPasswordResetCompleted  = "password_reset_completed"
	EventPasswordResetFailed     = "password_reset_failed"
)

// Journey event types
const (
	EventJourneyCreated      = "journey_created"
	EventJourneyJoined       = "journey_joined"
	EventJourneyJoinRejected = "journey_join_rejected"
	EventJourneyLeft         = "journey_left"
	EventJourneyDeleted      = "journey_deleted"
	EventJourneyDeleteDenied = "journey_delete_denied"
)

// Event is one audit record.
type Event struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Timestamp time.Time          `bson:"timestamp"`

	Category  string `bson:"category"`
	EventType string `bson:"event_type"`

	// Who and what
	UserID    *primitive.ObjectID `bson:"user_id,omitempty"`
	Email     string              `bson:"email,omitempty"`
	JourneyID string              `bson:"journey_id,omitempty"`

	// Client
	IP        string `bson:"ip"`
	UserAgent string `bson:"user_agent,omitempty"`

	Success       bool   `bson:"success"`
	FailureReason string `bson:"failure_reason,omitempty"`

	Details map[string]string `bson:"details,omitempty"`
}

// QueryFilter selects audit events. Zero fields are ignored.
type QueryFilter struct {
	Email     string
	JourneyID string
	Category  string
	EventType string
	Since     *time.Time
	Limit     int64
}

// Store manages audit event records.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("audit_events")}
}

// EnsureIndexes creates the query indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_time"),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_email_time"),
		},
		{
			Keys:    bson.D{{Key: "journey_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_journey_time"),
		},
		{
			Keys: bson.D{
				{Key: "category", Value: 1},
				{Key: "event_type", Value: 1},
				{Key: "timestamp", Value: -1},
			},
			Options: options.Index().SetName("idx_audit_type_time"),
		},
	})
	return err
}

// Log records an audit event.
func (s *Store) Log(ctx context.Context, event Event) error {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, event)
	return err
}

// Query returns matching events, newest first (100 by default).
func (s *Store) Query(ctx context.Context, f QueryFilter) ([]Event, error) {
	query := bson.M{}
	if f.Email != "" {
		query["email"] = f.Email
	}
	if f.JourneyID != "" {
		query["journey_id"] = f.JourneyID
	}
	if f.Category != "" {
		query["category"] = f.Category
	}
	if f.EventType != "" {
		query["event_type"] = f.EventType
	}
	if f.Since != nil {
		query["timestamp"] = bson.M{"$gte": *f.Since}
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit)

	cur, err := s.c.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var events []Event
	if err := cur.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// GetByEmail returns recent events for one user.
func (s *Store) GetByEmail(ctx context.Context, email string, limit int64) ([]Event, error) {
	return s.Query(ctx, QueryFilter{Email: email, Limit: limit})
}

// GetByJourney returns the history of one journey.
func (s *Store) GetByJourney(ctx context.Context, journeyID string, limit int64) ([]Event, error) {
	return s.Query(ctx, QueryFilter{JourneyID: journeyID, Limit: limit})
}

// CountFailedLogins counts failed logins for email since the given time.
func (s *Store) CountFailedLogins(ctx context.Context, email string, since time.Time) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{
		"category":  CategoryAuth,
		"email":     email,
		"success":   false,
		"timestamp": bson.M{"$gte": since},
		"event_type": bson.M{"$in": bson.A{
			EventLoginFailedUserNotFound,
			EventLoginFailedWrongPass,
			EventLoginFailedRateLimit,
			EventLoginFailed,
		}},
	})
}
