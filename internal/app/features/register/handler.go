// internal/app/features/register/handler.go
package register

import (
	"net/http"

	uierrors "github.com/dalemusser/tellevo/internal/app/features/errors"
	"github.com/dalemusser/tellevo/internal/app/features/shared"
	"github.com/dalemusser/tellevo/internal/app/system/alert"
	"github.com/dalemusser/tellevo/internal/app/system/auth"
	"github.com/dalemusser/tellevo/internal/app/system/errtranslate"
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

type registerRequest struct {
	Name     string `json:"name" validate:"notblank,max=80" label:"Name"`
	Email    string `json:"email" validate:"required,emailaddr" label:"Email"`
	Password string `json:"password" validate:"required,min=8" label:"Password"`
}

// HandleRegister handles POST /api/auth/register.
//
// 201 with the new profile; 400 for validation failures; 409 when the email
// is taken.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if err := shared.DecodeJSON(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode register request failed", err, errtranslate.MsgBadRequest)
		return
	}
	if v := inputval.Validate(in); v.HasErrors() {
		alert.WriteJSON(w, http.StatusBadRequest, alert.New(alert.Warning, "Check the form", v.First()))
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "register")
	defer cancel()

	u, err := h.Auth.Register(ctx, in.Name, in.Email, in.Password)
	if err != nil {
		h.ErrLog.Respond(w, r, "Could not register", err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, u)
}
