// internal/app/features/journeys/views.go
package journeys

import (
	"github.com/dalemusser/tellevo/internal/domain/models"
	"github.com/dustin/go-humanize"
)

// JourneyView is a journey as seen by one caller.
type JourneyView struct {
	models.Journey
	SeatsLeft   int    `json:"seats_left"`
	CreatedAgo  string `json:"created_ago"`
	IsDriver    bool   `json:"is_driver"`
	IsPassenger bool   `json:"is_passenger"`
}

// ListView is the body of list responses and of every live frame.
type ListView struct {
	Journeys []JourneyView `json:"journeys"`
	Count    int           `json:"count"`
}

// RouteView carries the stored polyline and the waypoints a map redraws it from.
type RouteView struct {
	UID       string            `json:"uid"`
	Points    []models.GeoPoint `json:"points"`
	Waypoints []models.GeoPoint `json:"waypoints"`
}

func newJourneyView(j models.Journey, viewer string) JourneyView {
	return JourneyView{
		Journey:     j,
		SeatsLeft:   j.SeatsLeft(),
		CreatedAgo:  humanize.Time(j.CreatedAt),
		IsDriver:    j.Driver == viewer,
		IsPassenger: j.HasPassenger(viewer),
	}
}

func newListView(items []models.Journey, viewer string) ListView {
	out := make([]JourneyView, 0, len(items))
	for _, j := range items {
		out = append(out, newJourneyView(j, viewer))
	}
	return ListView{Journeys: out, Count: len(out)}
}
