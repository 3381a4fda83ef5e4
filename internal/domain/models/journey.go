// internal/domain/models/journey.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GeoPoint is one vertex of a route polyline.
type GeoPoint struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lng float64 `bson:"lng" json:"lng"`
}

// Journey is a car-pool trip offered by a driver.
//
// UID mirrors the hex form of ID; it is stamped by a second write right
// after insert so that clients can address a journey by a plain string.
// Points are stored already downsampled and never change afterwards.
type Journey struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	UID         string             `bson:"uid" json:"uid"`
	CreatorName string             `bson:"name_creator" json:"name_creator"`
	Email       string             `bson:"email" json:"email"`
	Driver      string             `bson:"driver" json:"driver"`
	Plate       string             `bson:"car_registration" json:"car_registration"`
	Capacity    int                `bson:"capacity" json:"capacity"`
	CreatedAt   time.Time          `bson:"creation_date" json:"creation_date"`
	Points      []GeoPoint         `bson:"points" json:"points"`
	Passengers  []string           `bson:"passengers" json:"passengers"`
}

// SeatsLeft reports how many passengers can still join.
func (j Journey) SeatsLeft() int {
	n := j.Capacity - len(j.Passengers)
	if n < 0 {
		return 0
	}
	return n
}

// HasPassenger reports whether email already rides in this journey.
func (j Journey) HasPassenger(email string) bool {
	for _, p := range j.Passengers {
		if p == email {
			return true
		}
	}
	return false
}

// Involves reports whether email is the driver or one of the passengers.
func (j Journey) Involves(email string) bool {
	return j.Driver == email || j.HasPassenger(email)
}
