// internal/app/features/journeys/create.go
package journeys

import (
	"net/http"

	"github.com/dalemusser/tellevo/internal/app/features/shared"
	"github.com/dalemusser/tellevo/internal/app/system/alert"
	"github.com/dalemusser/tellevo/internal/app/system/auth"
	"github.com/dalemusser/tellevo/internal/app/system/errtranslate"
	"github.com/dalemusser/tellevo/internal/app/system/events"
	"github.com/dalemusser/tellevo/internal/app/system/htmlsanitize"
	"github.com/dalemusser/tellevo/internal/app/system/inputval"
	"github.com/dalemusser/tellevo/internal/app/system/timeouts"
	"github.com/dalemusser/tellevo/internal/domain/models"
)

type pointInput struct {
	Lat float64 `json:"lat" validate:"latitude" label:"Latitude"`
	Lng float64 `json:"lng" validate:"longitude" label:"Longitude"`
}

type createRequest struct {
	Plate    string       `json:"car_registration" validate:"notblank,max=16" label:"Car registration"`
	Capacity int          `json:"capacity" validate:"gte=1,lte=50" label:"Capacity"`
	Points   []pointInput `json:"points" validate:"min=1,dive" label:"Route"`
}

// HandleCreate handles POST /api/journeys. The caller becomes the driver.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	viewer := viewerEmail(u)

	var in createRequest
	if err := shared.DecodeJSON(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode journey request failed", err, errtranslate.MsgBadRequest)
		return
	}
	in.Plate = htmlsanitize.PlainText(in.Plate)
	if v := inputval.Validate(in); v.HasErrors() {
		alert.WriteJSON(w, http.StatusBadRequest, alert.New(alert.Warning, "Check the form", v.First()))
		return
	}

	points := make([]models.GeoPoint, len(in.Points))
	for i, p := range in.Points {
		points[i] = models.GeoPoint{Lat: p.Lat, Lng: p.Lng}
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "journey create")
	defer cancel()

	j, err := h.Journeys.Create(ctx, viewer, in.Plate, in.Capacity, points)
	if err != nil {
		h.ErrLog.Respond(w, r, "Could not create the journey", err)
		return
	}

	h.Audit.JourneyCreated(r.Context(), viewer, j.UID, j.Capacity, len(j.Points))
	e := events.New(events.JourneyCreated, j.UID, viewer)
	e.Capacity = j.Capacity
	h.publish(r.Context(), e)

	shared.WriteJSON(w, http.StatusCreated, newJourneyView(j, viewer))
}
