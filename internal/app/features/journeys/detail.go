// internal/app/features/journeys/detail.go
package journeys

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/tellevo/internal/app/features/shared"
	journeystore "github.com/dalemusser/tellevo/internal/app/store/journeys"
	"github.com/dalemusser/tellevo/internal/app/system/auth"
	"github.com/dalemusser/tellevo/internal/app/system/qr"
	"github.com/dalemusser/tellevo/internal/app/system/route"
	"github.com/dalemusser/tellevo/internal/app/system/timeouts"
	"github.com/dalemusser/tellevo/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	minQRSize = 64
	maxQRSize = 1024
)

// load fetches the journey named by the {id} URL parameter. On failure the
// response has been written and ok is false.
func (h *Handler) load(w http.ResponseWriter, r *http.Request, title string) (*models.Journey, bool) {
	id, err := journeystore.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		h.ErrLog.Respond(w, r, title, err)
		return nil, false
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "journey get")
	defer cancel()

	j, err := h.Journeys.GetByID(ctx, id)
	if err != nil {
		h.ErrLog.Respond(w, r, title, err)
		return nil, false
	}
	return j, true
}

// ServeJourney handles GET /api/journeys/{id}.
func (h *Handler) ServeJourney(w http.ResponseWriter, r *http.Request) {
	j, ok := h.load(w, r, "Could not load the journey")
	if !ok {
		return
	}
	u, _ := auth.CurrentUser(r)
	shared.WriteJSON(w, http.StatusOK, newJourneyView(*j, viewerEmail(u)))
}

// ServeRoute handles GET /api/journeys/{id}/route.
func (h *Handler) ServeRoute(w http.ResponseWriter, r *http.Request) {
	j, ok := h.load(w, r, "Could not load the route")
	if !ok {
		return
	}
	shared.WriteJSON(w, http.StatusOK, RouteView{
		UID:       j.UID,
		Points:    j.Points,
		Waypoints: route.Waypoints(j.Points),
	})
}

// ServeQR handles GET /api/journeys/{id}/qr. The PNG encodes the journey
// uid, which the QR scanner turns back into a join. ?size= picks the edge
// length in pixels.
func (h *Handler) ServeQR(w http.ResponseWriter, r *http.Request) {
	j, ok := h.load(w, r, "Could not build the QR code")
	if !ok {
		return
	}

	size := qr.DefaultSize
	if s := r.URL.Query().Get("size"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			size = min(max(n, minQRSize), maxQRSize)
		}
	}

	png, err := qr.Encode(j.UID, size)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "qr encode failed", err, "Could not build the QR code")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	if _, err := w.Write(png); err != nil {
		h.Log.Debug("qr write failed", zap.String("journey", j.UID), zap.Error(err))
	}
}
