// internal/app/features/passwordrestore/handler.go
package passwordrestore

import (
	"net/http"

	uierrors "github.com/dalemusser/tellevo/internal/app/features/errors"
	"github.com/dalemusser/tellevo/internal/app/features/shared"
	"github.com/dalemusser/tellevo/internal/app/system/alert"
	"github.com/dalemusser/tellevo/internal/app/system/auth"
	"github.com/dalemusser/tellevo/internal/app/system/errtranslate"
	"github.com/dalemusser/tellevo/internal/app/system/identity"
	"github.com/dalemusser/tellevo/internal/app/system/inputval"
	"github.com/dalemusser/tellevo/internal/app/system/timeouts"
	"go.uber.org/zap"
)

type Handler struct {
	Auth   *auth.Session
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger
}

func NewHandler(sess *auth.Session, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Auth: sess, ErrLog: errLog, Log: logger}
}

type restoreRequest struct {
	Email string `json:"email" validate:"required,emailaddr" label:"Email"`
}

type resetRequest struct {
	Token    string `json:"token" validate:"required" label:"Token"`
	Password string `json:"password" validate:"required,min=8" label:"Password"`
}

type message struct {
	Alert alert.Alert `json:"alert"`
}

// HandleRestore handles POST /api/auth/password-restore. It emails a reset
// link to a registered address.
func (h *Handler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	var in restoreRequest
	if err := shared.DecodeJSON(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode password restore request failed", err, errtranslate.MsgBadRequest)
		return
	}
	if v := inputval.Validate(in); v.HasErrors() {
		alert.WriteJSON(w, http.StatusBadRequest, alert.New(alert.Warning, "Check the form", v.First()))
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "password restore")
	defer cancel()

	if err := h.Auth.PasswordRestore(ctx, in.Email); err != nil {
		if identity.Code(err) == identity.CodeUserNotFound {
			alert.WriteJSON(w, http.StatusNotFound, alert.FromError("Could not send the email", err))
			return
		}
		h.ErrLog.Respond(w, r, "Could not send the email", err)
		return
	}

	shared.WriteJSON(w, http.StatusAccepted, message{
		Alert: alert.New(alert.Success, "Email sent", "Check your inbox for a link to reset your password."),
	})
}

// HandleReset handles POST /api/auth/password-reset, completing a reset
// with the token from the emailed link.
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	var in resetRequest
	if err := shared.DecodeJSON(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode password reset request failed", err, errtranslate.MsgBadRequest)
		return
	}
	if v := inputval.Validate(in); v.HasErrors() {
		alert.WriteJSON(w, http.StatusBadRequest, alert.New(alert.Warning, "Check the form", v.First()))
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "password reset")
	defer cancel()

	if err := h.Auth.PasswordReset(ctx, in.Token, in.Password); err != nil {
		h.ErrLog.Respond(w, r, "Could not reset the password", err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, message{
		Alert: alert.New(alert.Success, "Password updated", "You can now sign in with your new password."),
	})
}
