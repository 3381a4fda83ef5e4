// internal/app/store/journeys/journeystore.go
package journeystore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/tellevo/internal/app/policy/journeypolicy"
	userstore "github.com/dalemusser/tellevo/internal/app/store/users"
	"github.com/dalemusser/tellevo/internal/app/system/live"
	"github.com/dalemusser/tellevo/internal/app/system/normalize"
	"github.com/dalemusser/tellevo/internal/app/system/route"
	"github.com/dalemusser/tellevo/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// CollectionName is the journeys collection.
const CollectionName = "journeys"

// joinAttempts bounds how often Join retries when the conditional update
// missed but a re-read shows the journey joinable again.
const joinAttempts = 3

// UserLookup resolves a creator's profile by email.
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// Options tunes a Store.
type Options struct {
	// Stride is the route downsampling stride (route.DefaultStride when 0).
	Stride int
	// NotifyOnWrite re-snapshots the live feed after every write made through
	// this Store. Deployments that watch the change stream leave it off.
	NotifyOnWrite bool
}

// Store is the journey repository.
type Store struct {
	c     *mongo.Collection
	users UserLookup
	feed  *live.Feed[models.Journey]
	log   *zap.Logger
	opts  Options
}

// New creates a journey Store and its (not yet started) live feed.
func New(db *mongo.Database, users UserLookup, logger *zap.Logger, opts Options) *Store {
	if opts.Stride <= 0 {
		opts.Stride = route.DefaultStride
	}
	s := &Store{
		c:     db.Collection(CollectionName),
		users: users,
		log:   logger,
		opts:  opts,
	}
	s.feed = live.New("journeys", s.Snapshot, logger)
	return s
}

// Feed returns the live feed backing ListAll and ListMine.
func (s *Store) Feed() *live.Feed[models.Journey] {
	return s.feed
}

// Collection exposes the underlying collection for change-stream watchers.
func (s *Store) Collection() *mongo.Collection {
	return s.c
}

// ParseID converts a journey uid into its ObjectID. Malformed ids report
// ErrJourneyNotFound, since no journey can carry them.
func ParseID(uid string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(uid)
	if err != nil {
		return primitive.NilObjectID, journeypolicy.ErrJourneyNotFound
	}
	return id, nil
}

// Snapshot returns every journey in _id order.
func (s *Store) Snapshot(ctx context.Context) ([]models.Journey, error) {
	cur, err := s.c.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]models.Journey, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListAll subscribes to every journey. The first update is the current set.
func (s *Store) ListAll(ctx context.Context) (*live.Subscription[models.Journey], error) {
	return s.feed.Subscribe(ctx, nil)
}

// ListMine subscribes to the journeys email drives or rides in.
func (s *Store) ListMine(ctx context.Context, email string) (*live.Subscription[models.Journey], error) {
	email = normalize.Email(email)
	return s.feed.Subscribe(ctx, func(j models.Journey) bool {
		return j.Involves(email)
	})
}

// GetByID loads one journey.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Journey, error) {
	var j models.Journey
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&j); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, journeypolicy.ErrJourneyNotFound
		}
		return nil, err
	}
	return &j, nil
}

// Create offers a new journey driven by creatorEmail. The route is
// downsampled before storage. The document is inserted first and its uid
// stamped by a second write; if stamping fails the insert is rolled back.
func (s *Store) Create(ctx context.Context, creatorEmail, plate string, capacity int, points []models.GeoPoint) (models.Journey, error) {
	creatorEmail = normalize.Email(creatorEmail)

	creator, err := s.users.GetByEmail(ctx, creatorEmail)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			s.log.Warn("journey create: creator has no profile", zap.String("email", creatorEmail))
			return models.Journey{}, fmt.Errorf("create journey: %w", journeypolicy.ErrCreatorNotFound)
		}
		return models.Journey{}, fmt.Errorf("create journey: lookup creator: %w", err)
	}

	j := models.Journey{
		CreatorName: creator.Name,
		Email:       creatorEmail,
		Driver:      creatorEmail,
		Plate:       normalize.Plate(plate),
		Capacity:    capacity,
		CreatedAt:   time.Now().UTC(),
		Points:      route.Downsample(points, s.opts.Stride),
		Passengers:  []string{},
	}

	res, err := s.c.InsertOne(ctx, j)
	if err != nil {
		s.log.Error("journey insert failed", zap.String("driver", creatorEmail), zap.Error(err))
		return models.Journey{}, fmt.Errorf("create journey: insert: %w", err)
	}
	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return models.Journey{}, fmt.Errorf("create journey: unexpected id type %T", res.InsertedID)
	}
	j.ID = id
	j.UID = id.Hex()

	if _, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{"uid": j.UID}}); err != nil {
		s.log.Error("journey uid stamp failed; rolling back", zap.String("journey", j.UID), zap.Error(err))
		if _, derr := s.c.DeleteOne(context.WithoutCancel(ctx), bson.M{"_id": id}); derr != nil {
			s.log.Error("journey rollback failed; orphan left behind",
				zap.String("journey", j.UID),
				zap.Error(derr))
		}
		return models.Journey{}, fmt.Errorf("create journey: stamp uid: %w", err)
	}

	s.log.Info("journey created",
		zap.String("journey", j.UID),
		zap.String("driver", j.Driver),
		zap.Int("capacity", j.Capacity),
		zap.Int("points_in", len(points)),
		zap.Int("points_stored", len(j.Points)))
	s.changed()
	return j, nil
}

// Join adds email to the journey's passengers. The driver and capacity
// rules are part of the update filter, so concurrent joins cannot overfill
// a journey. When the update matches nothing the journey is re-read to
// report which rule failed.
func (s *Store) Join(ctx context.Context, id primitive.ObjectID, email string) error {
	email = normalize.Email(email)

	filter := bson.M{
		"_id":    id,
		"driver": bson.M{"$ne": email},
		"$expr": bson.M{"$lt": bson.A{
			bson.M{"$size": bson.M{"$ifNull": bson.A{"$passengers", bson.A{}}}},
			"$capacity",
		}},
	}
	update := bson.M{"$addToSet": bson.M{"passengers": email}}

	for attempt := 0; attempt < joinAttempts; attempt++ {
		res, err := s.c.UpdateOne(ctx, filter, update)
		if err != nil {
			s.log.Error("journey join failed", zap.String("journey", id.Hex()), zap.String("passenger", email), zap.Error(err))
			return fmt.Errorf("join journey: %w", err)
		}
		if res.MatchedCount == 1 {
			s.log.Info("journey joined",
				zap.String("journey", id.Hex()),
				zap.String("passenger", email),
				zap.Bool("already_aboard", res.ModifiedCount == 0))
			if res.ModifiedCount > 0 {
				s.changed()
			}
			return nil
		}

		j, err := s.GetByID(ctx, id)
		if err != nil {
			s.log.Info("journey join rejected", zap.String("journey", id.Hex()), zap.String("passenger", email), zap.Error(err))
			return fmt.Errorf("join journey: %w", err)
		}
		if err := journeypolicy.CheckJoin(j, email); err != nil {
			s.log.Info("journey join rejected", zap.String("journey", id.Hex()), zap.String("passenger", email), zap.Error(err))
			return fmt.Errorf("join journey: %w", err)
		}
		// A seat freed up between the update and the re-read; try again.
	}
	return fmt.Errorf("join journey: %w", journeypolicy.ErrCapacityExceeded)
}

// Leave removes email from the passengers. Leaving a journey one is not
// part of is a no-op.
func (s *Store) Leave(ctx context.Context, id primitive.ObjectID, email string) error {
	email = normalize.Email(email)

	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$pull": bson.M{"passengers": email}})
	if err != nil {
		s.log.Error("journey leave failed", zap.String("journey", id.Hex()), zap.String("passenger", email), zap.Error(err))
		return fmt.Errorf("leave journey: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("leave journey: %w", journeypolicy.ErrJourneyNotFound)
	}
	s.log.Info("journey left",
		zap.String("journey", id.Hex()),
		zap.String("passenger", email),
		zap.Bool("was_aboard", res.ModifiedCount > 0))
	if res.ModifiedCount > 0 {
		s.changed()
	}
	return nil
}

// Delete removes a journey. Ownership is the caller's concern.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		s.log.Error("journey delete failed", zap.String("journey", id.Hex()), zap.Error(err))
		return fmt.Errorf("delete journey: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("delete journey: %w", journeypolicy.ErrJourneyNotFound)
	}
	s.log.Info("journey deleted", zap.String("journey", id.Hex()))
	s.changed()
	return nil
}

func (s *Store) changed() {
	if s.opts.NotifyOnWrite {
		s.feed.Notify()
	}
}
