// internal/app/features/journeys/membership.go
package journeys

import (
	"errors"
	"net/http"

	"github.com/dalemusser/tellevo/internal/app/features/shared"
	"github.com/dalemusser/tellevo/internal/app/policy/journeypolicy"
	journeystore "github.com/dalemusser/tellevo/internal/app/store/journeys"
	"github.com/dalemusser/tellevo/internal/app/system/auth"
	"github.com/dalemusser/tellevo/internal/app/system/events"
	"github.com/dalemusser/tellevo/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const joinTitle = "Could not join the journey"

// HandleJoin handles POST /api/journeys/{id}/join.
func (h *Handler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	h.JoinByUID(w, r, chi.URLParam(r, "id"))
}

// JoinByUID adds the caller to the journey with the given uid and answers
// with the updated journey. The QR scanner joins through here as well.
func (h *Handler) JoinByUID(w http.ResponseWriter, r *http.Request, uid string) {
	u, _ := auth.CurrentUser(r)
	viewer := viewerEmail(u)

	id, err := journeystore.ParseID(uid)
	if err != nil {
		h.Audit.JourneyJoinRejected(r.Context(), viewer, uid, err)
		h.ErrLog.Respond(w, r, joinTitle, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "journey join")
	defer cancel()

	if err := h.Journeys.Join(ctx, id, viewer); err != nil {
		if journeypolicy.IsRuleViolation(err) {
			h.Audit.JourneyJoinRejected(r.Context(), viewer, uid, err)
		}
		h.ErrLog.Respond(w, r, joinTitle, err)
		return
	}
	h.Audit.JourneyJoined(r.Context(), viewer, id.Hex())
	h.publish(r.Context(), events.New(events.JourneyJoined, id.Hex(), viewer))

	h.respondWithJourney(w, r, id, viewer)
}

// HandleLeave handles POST /api/journeys/{id}/leave. Leaving a journey the
// caller is not aboard succeeds without changes.
func (h *Handler) HandleLeave(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	viewer := viewerEmail(u)

	id, err := journeystore.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		h.ErrLog.Respond(w, r, "Could not leave the journey", err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "journey leave")
	defer cancel()

	if err := h.Journeys.Leave(ctx, id, viewer); err != nil {
		h.ErrLog.Respond(w, r, "Could not leave the journey", err)
		return
	}
	h.Audit.JourneyLeft(r.Context(), viewer, id.Hex())
	h.publish(r.Context(), events.New(events.JourneyLeft, id.Hex(), viewer))

	h.respondWithJourney(w, r, id, viewer)
}

// HandleDelete handles DELETE /api/journeys/{id}. Only the driver may
// delete; anyone else gets 403.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	viewer := viewerEmail(u)

	j, ok := h.load(w, r, "Could not delete the journey")
	if !ok {
		return
	}
	if err := journeypolicy.CanDelete(j, viewer); err != nil {
		if errors.Is(err, journeypolicy.ErrNotDriver) {
			h.Audit.JourneyDeleteDenied(r.Context(), viewer, j.UID)
		}
		h.ErrLog.Respond(w, r, "Could not delete the journey", err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "journey delete")
	defer cancel()

	if err := h.Journeys.Delete(ctx, j.ID); err != nil {
		h.ErrLog.Respond(w, r, "Could not delete the journey", err)
		return
	}
	h.Audit.JourneyDeleted(r.Context(), viewer, j.UID)
	h.publish(r.Context(), events.New(events.JourneyDeleted, j.UID, viewer))

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondWithJourney(w http.ResponseWriter, r *http.Request, id primitive.ObjectID, viewer string) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "journey get")
	defer cancel()

	j, err := h.Journeys.GetByID(ctx, id)
	if err != nil {
		// The write succeeded; a concurrent delete can still win the re-read.
		h.Log.Info("journey gone after membership change", zap.String("journey", id.Hex()), zap.Error(err))
		h.ErrLog.Respond(w, r, "Could not load the journey", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, newJourneyView(*j, viewer))
}
