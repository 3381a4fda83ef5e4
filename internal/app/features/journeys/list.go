// internal/app/features/journeys/list.go
package journeys

import (
	"net/http"

	"github.com/dalemusser/tellevo/internal/app/features/shared"
	"github.com/dalemusser/tellevo/internal/app/system/auth"
	"github.com/dalemusser/tellevo/internal/app/system/live"
	"github.com/dalemusser/tellevo/internal/app/system/timeouts"
	"github.com/dalemusser/tellevo/internal/app/system/wsstream"
	"github.com/dalemusser/tellevo/internal/domain/models"
	"go.uber.org/zap"
)

// ServeList handles GET /api/journeys.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	h.serveSnapshot(w, r, false)
}

// ServeMine handles GET /api/journeys/mine: journeys the caller drives or rides in.
func (h *Handler) ServeMine(w http.ResponseWriter, r *http.Request) {
	h.serveSnapshot(w, r, true)
}

func (h *Handler) serveSnapshot(w http.ResponseWriter, r *http.Request, mine bool) {
	u, _ := auth.CurrentUser(r)
	viewer := viewerEmail(u)

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "journeys list")
	defer cancel()

	items, err := h.Journeys.Snapshot(ctx)
	if err != nil {
		h.ErrLog.Respond(w, r, "Could not load journeys", err)
		return
	}
	if mine {
		kept := items[:0]
		for _, j := range items {
			if j.Involves(viewer) {
				kept = append(kept, j)
			}
		}
		items = kept
	}
	shared.WriteJSON(w, http.StatusOK, newListView(items, viewer))
}

// ServeLive handles GET /api/journeys/live. The WebSocket receives the full
// list on connect and again after every change.
func (h *Handler) ServeLive(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	sub, err := h.Journeys.ListAll(r.Context())
	h.stream(w, r, viewerEmail(u), sub, err)
}

// ServeMineLive handles GET /api/journeys/mine/live.
func (h *Handler) ServeMineLive(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	viewer := viewerEmail(u)
	sub, err := h.Journeys.ListMine(r.Context(), viewer)
	h.stream(w, r, viewer, sub, err)
}

func (h *Handler) stream(w http.ResponseWriter, r *http.Request, viewer string, sub *live.Subscription[models.Journey], err error) {
	if err != nil {
		h.ErrLog.Respond(w, r, "Could not load journeys", err)
		return
	}
	err = wsstream.Serve(h.Streamer, w, r, sub, func(items []models.Journey) any {
		return newListView(items, viewer)
	})
	if err != nil {
		h.Log.Debug("journey stream ended", zap.String("path", r.URL.Path), zap.Error(err))
	}
}

func viewerEmail(u *auth.SessionUser) string {
	if u == nil {
		return ""
	}
	return u.Email
}
