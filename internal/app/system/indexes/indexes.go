// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each collection's set is reconciled
independently and errors are aggregated so every problem is visible and
startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
	var problems []string
	for _, set := range Sets() {
		r := reconciler{coll: db.Collection(set.Collection), log: logger}
		if err := r.ensure(ctx, set.Models); err != nil {
			problems = append(problems, set.Collection+": "+err.Error())
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// Set is the desired index set of one collection.
type Set struct {
	Collection string
	Models     []mongo.IndexModel
}

// Sets lists every index the application relies on.
func Sets() []Set {
	return []Set{
		{"users", []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("uniq_users_email"),
			},
			{
				Keys:    bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}},
				Options: options.Index().SetName("idx_users_nameci_id"),
			},
		}},
		{"credentials", []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("uniq_credentials_email"),
			},
		}},
		{"journeys", []mongo.IndexModel{
			// My-journeys filters by driver or passenger.
			{
				Keys:    bson.D{{Key: "driver", Value: 1}},
				Options: options.Index().SetName("idx_journeys_driver"),
			},
			{
				Keys:    bson.D{{Key: "passengers", Value: 1}},
				Options: options.Index().SetName("idx_journeys_passengers"),
			},
			{
				Keys:    bson.D{{Key: "uid", Value: 1}},
				Options: options.Index().SetName("idx_journeys_uid"),
			},
		}},
		{"sessions", []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "logout_at", Value: 1}, {Key: "expires_at", Value: 1}},
				Options: options.Index().SetName("idx_sessions_open_expiry"),
			},
			{
				Keys:    bson.D{{Key: "logout_at", Value: 1}, {Key: "last_active_at", Value: -1}},
				Options: options.Index().SetName("idx_sessions_active"),
			},
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "login_at", Value: -1}},
				Options: options.Index().SetName("idx_sessions_user"),
			},
		}},
		{"password_resets", []mongo.IndexModel{
			// TTL: MongoDB removes expired reset tokens.
			{
				Keys:    bson.D{{Key: "expires_at", Value: 1}},
				Options: options.Index().SetName("idx_resets_expires_ttl").SetExpireAfterSeconds(0),
			},
			{
				Keys:    bson.D{{Key: "account_id", Value: 1}},
				Options: options.Index().SetName("idx_resets_account"),
			},
		}},
		{"audit_events", []mongo.IndexModel{
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
		}},
	}
}

/* -------------------------------------------------------------------------- */
/* Reconciliation                                                              */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

type desiredIndex struct {
	model  mongo.IndexModel
	name   string
	unique bool
	sig    string
}

func describe(m mongo.IndexModel) desiredIndex {
	d := desiredIndex{model: m, sig: keySig(m.Keys.(bson.D))}
	if m.Options != nil {
		if m.Options.Name != nil {
			d.name = *m.Options.Name
		}
		d.unique = m.Options.Unique != nil && *m.Options.Unique
	}
	return d
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func isUnique(p *bool) bool { return p != nil && *p }

// Mongo sometimes reports IndexOptionsConflict when an index with the same
// keys exists under a different name or with different options.
func isOptionsConflictErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "IndexOptionsConflict")
}

type reconciler struct {
	coll *mongo.Collection
	log  *zap.Logger
}

// existing maps key signature to the index currently holding it.
func (r reconciler) existing(ctx context.Context) (map[string]existingIndex, error) {
	cur, err := r.coll.Indexes().List(ctx)
	if err != nil {
		// The collection may not exist yet.
		return map[string]existingIndex{}, nil
	}
	defer cur.Close(ctx)

	out := map[string]existingIndex{}
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			r.log.Warn("failed to decode existing index",
				zap.String("collection", r.coll.Name()),
				zap.Error(err))
			continue
		}
		out[keySig(idx.Key)] = idx
	}
	return out, cur.Err()
}

func (r reconciler) ensure(ctx context.Context, models []mongo.IndexModel) error {
	have, err := r.existing(ctx)
	if err != nil {
		return err
	}

	var errs []string
	for _, m := range models {
		d := describe(m)
		if err := r.ensureOne(ctx, d, have); err != nil {
			errs = append(errs, fmt.Sprintf("%s(%s): %v", r.coll.Name(), d.name, err))
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func (r reconciler) ensureOne(ctx context.Context, d desiredIndex, have map[string]existingIndex) error {
	start := time.Now()
	fields := []zap.Field{
		zap.String("collection", r.coll.Name()),
		zap.String("name", d.name),
		zap.String("keys", d.sig),
		zap.Bool("unique", d.unique),
	}

	ex, found := have[d.sig]
	switch {
	case found && isUnique(ex.Unique) == d.unique && (d.name == "" || ex.Name == d.name):
		r.log.Debug("reusing existing index", fields...)
		return nil

	case found:
		// Same keys under another name or uniqueness: replace it.
		if err := r.replace(ctx, ex.Name, d); err != nil {
			return err
		}
		r.log.Info("index replaced", append(fields,
			zap.String("previous", ex.Name),
			zap.Duration("took", time.Since(start)))...)
		return nil
	}

	if _, err := r.coll.Indexes().CreateOne(ctx, d.model); err != nil {
		if !isOptionsConflictErr(err) {
			return r.createErr(d, err)
		}
		// Someone created an equivalent index concurrently; reload and retry once.
		fresh, lerr := r.existing(ctx)
		if lerr != nil {
			return err
		}
		ex, ok := fresh[d.sig]
		if !ok {
			return err
		}
		if isUnique(ex.Unique) == d.unique {
			r.log.Info("reusing existing index (post-conflict)", fields...)
			return nil
		}
		if err := r.replace(ctx, ex.Name, d); err != nil {
			return err
		}
	}
	r.log.Info("index ensured", append(fields, zap.Duration("took", time.Since(start)))...)
	return nil
}

func (r reconciler) replace(ctx context.Context, old string, d desiredIndex) error {
	if _, err := r.coll.Indexes().DropOne(ctx, old); err != nil {
		return fmt.Errorf("drop %s: %w", old, err)
	}
	if _, err := r.coll.Indexes().CreateOne(ctx, d.model); err != nil {
		return r.createErr(d, err)
	}
	return nil
}

func (r reconciler) createErr(d desiredIndex, err error) error {
	if d.unique && wafflemongo.IsDup(err) {
		return fmt.Errorf("cannot create unique index on %s: duplicate values present", d.sig)
	}
	return err
}
