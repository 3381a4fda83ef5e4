// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is the profile document written at registration.
//
// NOTE:
//   - ID equals the identity provider's account ID for the same email.
//   - Email is stored normalized (trimmed, lower-case) and is unique.
//   - Credentials live in the identity provider, never on the profile.
type User struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name   string             `bson:"name" json:"name"`
	NameCI string             `bson:"name_ci" json:"-"` // lowercase, diacritics-stripped
	Email  string             `bson:"email" json:"email"`

	RegisteredAt time.Time `bson:"date_register" json:"date_register"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}
