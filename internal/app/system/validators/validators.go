// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"slices"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates the application's collections (if missing) and attaches
// JSON-Schema validators. Deployments that reject collMod validators are
// logged and skipped.
func EnsureAll(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
	v := ensurer{db: db, log: logger}

	existing, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		// Fall back to create-and-handle-race for every collection.
		existing = nil
	}

	var problems []string
	for _, c := range collections() {
		if err := v.ensure(ctx, c.name, c.schema, slices.Contains(existing, c.name)); err != nil {
			problems = append(problems, c.name+": "+err.Error())
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

type collection struct {
	name   string
	schema bson.M
}

func collections() []collection {
	return []collection{
		{"users", usersSchema()},
		{"credentials", credentialsSchema()},
		{"journeys", journeysSchema()},
		{"sessions", sessionsSchema()},
		// Reset tokens and audit events are written by code only.
		{"password_resets", nil},
		{"audit_events", nil},
	}
}

type ensurer struct {
	db  *mongo.Database
	log *zap.Logger
}

func (v ensurer) ensure(ctx context.Context, name string, schema bson.M, exists bool) error {
	if !exists {
		if err := v.db.CreateCollection(ctx, name); err != nil && !isNamespaceExistsErr(err) {
			v.log.Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
			return err
		}
		v.log.Info("created collection", zap.String("collection", name))
	}
	if schema == nil {
		return nil
	}

	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: schema},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	if err := v.db.RunCommand(ctx, cmd).Err(); err != nil {
		if isUnsupported(err) {
			v.log.Info("validator skipped (unsupported)", zap.String("collection", name))
			return nil
		}
		return err
	}
	v.log.Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func commandErr(err error, codes ...int32) bool {
	var ce mongo.CommandError
	return errors.As(err, &ce) && slices.Contains(codes, ce.Code)
}

func isNamespaceExistsErr(err error) bool {
	if commandErr(err, 48) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

// isUnsupported matches "no such command" (59) and "not implemented" (115).
func isUnsupported(err error) bool {
	if commandErr(err, 59, 115) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "no such command") ||
		strings.Contains(s, "not implemented") ||
		strings.Contains(s, "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

var (
	nonBlank = bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"}
	integer  = bson.A{"int", "long"}
	number   = bson.A{"double", "int", "long", "decimal"}
)

func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "email", "date_register"},
			"properties": bson.M{
				"name":          nonBlank,
				"name_ci":       bson.M{"bsonType": "string"},
				"email":         nonBlank,
				"date_register": bson.M{"bsonType": "date"},
			},
		},
	}
}

func credentialsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"email", "password_hash"},
			"properties": bson.M{
				"email":         nonBlank,
				"password_hash": nonBlank,
			},
		},
	}
}

func journeysSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"driver", "email", "car_registration", "capacity", "points", "passengers", "creation_date"},
			"properties": bson.M{
				"uid":              bson.M{"bsonType": "string"},
				"driver":           nonBlank,
				"email":            nonBlank,
				"name_creator":     bson.M{"bsonType": "string"},
				"car_registration": nonBlank,
				"capacity":         bson.M{"bsonType": integer, "minimum": 1},
				"creation_date":    bson.M{"bsonType": "date"},
				"points": bson.M{
					"bsonType": "array",
					"minItems": 1,
					"items": bson.M{
						"bsonType": "object",
						"required": bson.A{"lat", "lng"},
						"properties": bson.M{
							"lat": bson.M{"bsonType": number, "minimum": -90, "maximum": 90},
							"lng": bson.M{"bsonType": number, "minimum": -180, "maximum": 180},
						},
					},
				},
				"passengers": bson.M{
					"bsonType":    "array",
					"uniqueItems": true,
					"items":       bson.M{"bsonType": "string"},
				},
			},
		},
	}
}

func sessionsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"user_id", "login_at", "expires_at"},
			"properties": bson.M{
				"user_id":    bson.M{"bsonType": "objectId"},
				"login_at":   bson.M{"bsonType": "date"},
				"expires_at": bson.M{"bsonType": "date"},
				"end_reason": bson.M{"enum": bson.A{"logout", "expired", "inactive"}},
			},
		},
	}
}
