// internal/app/store/credentials/credentialstore.go
package credentials

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/tellevo/internal/app/system/normalize"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrDuplicateEmail is returned when an account for the email already exists.
	ErrDuplicateEmail = errors.New("an account with this email already exists")
	// ErrNotFound is returned when no account matches.
	ErrNotFound = errors.New("account not found")
)

// Credential is the identity provider's account record.
type Credential struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"password_hash"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

// Store manages identity accounts.
type Store struct {
	c *mongo.Collection
}

// New creates a credentials Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("credentials")}
}

// EnsureIndexes creates the unique email index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetName("uniq_credentials_email").SetUnique(true),
	})
	return err
}

// Create stores a new account with an already-hashed password.
func (s *Store) Create(ctx context.Context, email, passwordHash string) (Credential, error) {
	now := time.Now().UTC()
	c := Credential{
		ID:           primitive.NewObjectID(),
		Email:        normalize.Email(email),
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := s.c.InsertOne(ctx, c); err != nil {
		if wafflemongo.IsDup(err) {
			return Credential{}, ErrDuplicateEmail
		}
		return Credential{}, err
	}
	return c, nil
}

// GetByEmail looks up an account by case-insensitive email.
func (s *Store) GetByEmail(ctx context.Context, email string) (Credential, error) {
	var c Credential
	err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Credential{}, ErrNotFound
	}
	return c, err
}

// SetPasswordHash replaces the password hash of an account.
func (s *Store) SetPasswordHash(ctx context.Context, id primitive.ObjectID, hash string) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"password_hash": hash,
		"updated_at":    time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an account.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	return err
}
