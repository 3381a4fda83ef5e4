// internal/app/store/resets/store.go
package resets

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

const (
	// SecretLength is the number of random bytes in a reset token secret.
	SecretLength = 32
	// DefaultExpiry is how long a reset link stays valid.
	DefaultExpiry = time.Hour
	// BcryptCost for hashing token secrets.
	BcryptCost = 10
	// MaxAttempts is how many wrong secrets a reset record tolerates.
	MaxAttempts = 5
)

var (
	// ErrNotFound is returned when a token is unknown, expired or already used.
	ErrNotFound = errors.New("password reset not found or expired")
	// ErrInvalidToken is returned when the token secret does not match.
	ErrInvalidToken = errors.New("invalid password reset token")
	// ErrTooManyAttempts is returned once MaxAttempts wrong secrets were tried.
	ErrTooManyAttempts = errors.New("too many password reset attempts")
)

// Reset is a pending password reset. The token handed to the user is
// "<id hex>.<secret hex>"; only a bcrypt hash of the secret is stored.
type Reset struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	AccountID  primitive.ObjectID `bson:"account_id"`
	Email      string             `bson:"email"`
	SecretHash string             `bson:"secret_hash"`
	ExpiresAt  time.Time          `bson:"expires_at"` // TTL index field
	CreatedAt  time.Time          `bson:"created_at"`
	Attempts   int                `bson:"attempts"`
}

// Store manages password reset records.
type Store struct {
	c      *mongo.Collection
	expiry time.Duration
}

// New creates a Store. A non-positive expiry falls back to DefaultExpiry.
func New(db *mongo.Database, expiry time.Duration) *Store {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Store{
		c:      db.Collection("password_resets"),
		expiry: expiry,
	}
}

// Expiry returns how long new tokens stay valid.
func (s *Store) Expiry() time.Duration {
	return s.expiry
}

// Create replaces any pending reset for the account and returns the new
// plain token to be mailed.
func (s *Store) Create(ctx context.Context, accountID primitive.ObjectID, email string) (string, error) {
	secret := securecookie.GenerateRandomKey(SecretLength)
	if secret == nil {
		return "", errors.New("generate reset secret: random source unavailable")
	}
	secretHex := hex.EncodeToString(secret)

	hash, err := bcrypt.GenerateFromPassword([]byte(secretHex), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash reset secret: %w", err)
	}

	if _, err := s.c.DeleteMany(ctx, bson.M{"account_id": accountID}); err != nil {
		return "", fmt.Errorf("clear previous resets: %w", err)
	}

	now := time.Now().UTC()
	r := Reset{
		ID:         primitive.NewObjectID(),
		AccountID:  accountID,
		Email:      email,
		SecretHash: string(hash),
		ExpiresAt:  now.Add(s.expiry),
		CreatedAt:  now,
	}
	if _, err := s.c.InsertOne(ctx, r); err != nil {
		return "", fmt.Errorf("insert reset: %w", err)
	}
	return r.ID.Hex() + "." + secretHex, nil
}

// Consume validates token and deletes the record on success (single use).
func (s *Store) Consume(ctx context.Context, token string) (*Reset, error) {
	idHex, secret, ok := strings.Cut(strings.TrimSpace(token), ".")
	if !ok || secret == "" {
		return nil, ErrNotFound
	}
	id, err := primitive.ObjectIDFromHex(idHex)
	if err != nil {
		return nil, ErrNotFound
	}

	var r Reset
	err = s.c.FindOne(ctx, bson.M{
		"_id":        id,
		"expires_at": bson.M{"$gt": time.Now().UTC()},
	}).Decode(&r)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if r.Attempts >= MaxAttempts {
		return nil, ErrTooManyAttempts
	}

	if err := bcrypt.CompareHashAndPassword([]byte(r.SecretHash), []byte(secret)); err != nil {
		_, _ = s.c.UpdateOne(ctx, bson.M{"_id": r.ID}, bson.M{"$inc": bson.M{"attempts": 1}})
		return nil, ErrInvalidToken
	}

	res, err := s.c.DeleteOne(ctx, bson.M{"_id": r.ID})
	if err != nil {
		return nil, err
	}
	// A concurrent Consume won the race.
	if res.DeletedCount == 0 {
		return nil, ErrNotFound
	}
	return &r, nil
}
