// internal/app/store/sessions/store.go
package sessions

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// End reasons.
const (
	EndLogout   = "logout"
	EndExpired  = "expired"
	EndInactive = "inactive"
)

// ErrNotFound is returned when no session has the given id.
var ErrNotFound = errors.New("session not found")

// Session is one signed-in client. Auth tokens carry its id; the session
// stays authoritative so that logout and expiry take effect before the
// token itself runs out.
type Session struct {
	ID     primitive.ObjectID `bson:"_id,omitempty"`
	UserID primitive.ObjectID `bson:"user_id"`
	Email  string             `bson:"email"`

	LoginAt      time.Time  `bson:"login_at"`
	ExpiresAt    time.Time  `bson:"expires_at"`
	LastActiveAt time.Time  `bson:"last_active_at"`
	LogoutAt     *time.Time `bson:"logout_at,omitempty"`

	EndReason    string `bson:"end_reason,omitempty"` // "logout", "expired", "inactive"
	DurationSecs int64  `bson:"duration_secs,omitempty"`

	IP        string `bson:"ip"`
	UserAgent string `bson:"user_agent,omitempty"`
}

// Active reports whether the session is still open at now.
func (s Session) Active(now time.Time) bool {
	return s.LogoutAt == nil && now.Before(s.ExpiresAt)
}

// Meta describes the client opening a session.
type Meta struct {
	UserID    primitive.ObjectID
	Email     string
	IP        string
	UserAgent string
}

// Store manages sessions.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("sessions")}
}

// Create opens a session that expires after ttl.
func (s *Store) Create(ctx context.Context, m Meta, ttl time.Duration) (Session, error) {
	now := time.Now().UTC()
	sess := Session{
		ID:           primitive.NewObjectID(),
		UserID:       m.UserID,
		Email:        m.Email,
		LoginAt:      now,
		ExpiresAt:    now.Add(ttl),
		LastActiveAt: now,
		IP:           m.IP,
		UserAgent:    m.UserAgent,
	}
	if _, err := s.c.InsertOne(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// GetByID loads a session.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (Session, error) {
	var sess Session
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&sess); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	return sess, nil
}

// Touch records activity on an open session. It reports false when the
// session is closed or unknown.
func (s *Store) Touch(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "logout_at": nil},
		bson.M{"$set": bson.M{"last_active_at": time.Now().UTC()}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// Close ends an open session. It reports whether this call closed it;
// closing an already-closed session is not an error.
func (s *Store) Close(ctx context.Context, id primitive.ObjectID, reason string) (bool, error) {
	sess, err := s.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if sess.LogoutAt != nil {
		return false, nil
	}

	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "logout_at": nil},
		bson.M{"$set": bson.M{
			"logout_at":     now,
			"end_reason":    reason,
			"duration_secs": int64(now.Sub(sess.LoginAt).Seconds()),
		}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// CloseExpired closes open sessions past their expiry or idle for longer
// than inactiveThreshold (ignored when zero). It returns the ids it closed.
func (s *Store) CloseExpired(ctx context.Context, inactiveThreshold time.Duration) ([]primitive.ObjectID, error) {
	now := time.Now().UTC()

	or := bson.A{bson.M{"expires_at": bson.M{"$lte": now}}}
	if inactiveThreshold > 0 {
		or = append(or, bson.M{"last_active_at": bson.M{"$lt": now.Add(-inactiveThreshold)}})
	}

	cur, err := s.c.Find(ctx, bson.M{"logout_at": nil, "$or": or})
	if err != nil {
		return nil, err
	}
	var due []Session
	if err := cur.All(ctx, &due); err != nil {
		return nil, err
	}

	var closed []primitive.ObjectID
	for _, sess := range due {
		reason := EndInactive
		if !now.Before(sess.ExpiresAt) {
			reason = EndExpired
		}
		ok, err := s.Close(ctx, sess.ID, reason)
		if err != nil {
			return closed, err
		}
		if ok {
			closed = append(closed, sess.ID)
		}
	}
	return closed, nil
}

// GetActiveByUser returns the open sessions of a user.
func (s *Store) GetActiveByUser(ctx context.Context, userID primitive.ObjectID) ([]Session, error) {
	cur, err := s.c.Find(ctx, bson.M{
		"user_id":    userID,
		"logout_at":  nil,
		"expires_at": bson.M{"$gt": time.Now().UTC()},
	}, options.Find().SetSort(bson.D{{Key: "login_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []Session
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
