// internal/app/features/sessionstate/handler.go
package sessionstate

import (
	"context"
	"net/http"

	uierrors "github.com/dalemusser/tellevo/internal/app/features/errors"
	"github.com/dalemusser/tellevo/internal/app/features/shared"
	"github.com/dalemusser/tellevo/internal/app/system/auth"
	"github.com/dalemusser/tellevo/internal/app/system/timeouts"
	"github.com/dalemusser/tellevo/internal/app/system/wsstream"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// State is the frame sent for every auth state change.
type State struct {
	SignedIn bool `json:"signed_in"`
}

type Handler struct {
	Auth     *auth.Session
	Streamer *wsstream.Streamer
	ErrLog   *uierrors.ErrorLogger
	Log      *zap.Logger
}

func NewHandler(sess *auth.Session, streamer *wsstream.Streamer, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Auth: sess, Streamer: streamer, ErrLog: errLog, Log: logger}
}

// ServeState handles GET /api/auth/state.
//
// A WebSocket upgrade streams {"signed_in": bool} on every change until
// the client goes away. A plain GET answers with the current state once.
func (h *Handler) ServeState(w http.ResponseWriter, r *http.Request) {
	token := h.Auth.TokenFromRequest(r)

	if websocket.IsWebSocketUpgrade(r) {
		h.stream(w, r, token)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Guard())
	defer cancel()

	sub, err := h.Auth.AuthState(ctx, token)
	if err != nil {
		h.ErrLog.Respond(w, r, "Could not read the session", err)
		return
	}
	defer sub.Cancel()

	select {
	case v := <-sub.Updates():
		shared.WriteJSON(w, http.StatusOK, State{SignedIn: v})
	case <-ctx.Done():
		h.ErrLog.Respond(w, r, "Could not read the session", ctx.Err())
	}
}

func (h *Handler) stream(w http.ResponseWriter, r *http.Request, token string) {
	sub, err := h.Auth.AuthState(r.Context(), token)
	if err != nil {
		h.ErrLog.Respond(w, r, "Could not read the session", err)
		return
	}
	err = wsstream.Serve(h.Streamer, w, r, sub, func(v bool) any { return State{SignedIn: v} })
	if err != nil {
		h.Log.Debug("auth state stream ended", zap.Error(err))
	}
}
