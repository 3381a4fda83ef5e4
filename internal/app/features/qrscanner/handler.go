// internal/app/features/qrscanner/handler.go
package qrscanner

import (
	"errors"
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/tellevo/internal/app/features/errors"
	"github.com/dalemusser/tellevo/internal/app/features/shared"
	"github.com/dalemusser/tellevo/internal/app/system/alert"
	"github.com/dalemusser/tellevo/internal/app/system/errtranslate"
	"github.com/dalemusser/tellevo/internal/app/system/inputval"
	"github.com/dalemusser/tellevo/internal/app/system/normalize"
	"github.com/dalemusser/tellevo/internal/app/system/qr"
	"go.uber.org/zap"
)

// MsgNoCode is shown when an uploaded photo holds no readable QR code.
const MsgNoCode = "No QR code was found in the image."

// Joiner joins the caller to a journey and writes the response.
type Joiner interface {
	JoinByUID(w http.ResponseWriter, r *http.Request, uid string)
}

type Handler struct {
	Joiner Joiner
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger
}

func NewHandler(joiner Joiner, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Joiner: joiner, ErrLog: errLog, Log: logger}
}

type scanRequest struct {
	Code string `json:"code" validate:"notblank" label:"Code"`
}

// HandleScan handles POST /api/qr-scanner/scan. The body is either JSON
// {"code": "..."} with text a device scanner already decoded, or a
// multipart form whose "image" part is a photo of the code. Either way the
// caller joins the journey the code names.
func (h *Handler) HandleScan(w http.ResponseWriter, r *http.Request) {
	var code string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		c, ok := h.readImage(w, r)
		if !ok {
			return
		}
		code = c
	} else {
		var in scanRequest
		if err := shared.DecodeJSON(w, r, &in); err != nil {
			h.ErrLog.LogBadRequest(w, r, "decode scan request failed", err, errtranslate.MsgBadRequest)
			return
		}
		if v := inputval.Validate(in); v.HasErrors() {
			alert.WriteJSON(w, http.StatusBadRequest, alert.New(alert.Warning, "Check the form", v.First()))
			return
		}
		code = in.Code
	}

	code = normalize.Code(code)
	h.Log.Debug("qr code scanned", zap.String("code", code))
	h.Joiner.JoinByUID(w, r, code)
}

func (h *Handler) readImage(w http.ResponseWriter, r *http.Request) (string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, qr.MaxImageBytes+shared.MaxBodyBytes)
	if err := r.ParseMultipartForm(qr.MaxImageBytes); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse scan upload failed", err, errtranslate.MsgBadRequest)
		return "", false
	}
	f, _, err := r.FormFile("image")
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "scan upload has no image", err, "Image is required.")
		return "", false
	}
	defer f.Close()

	code, err := qr.Decode(f)
	if err != nil {
		if errors.Is(err, qr.ErrBadImage) || errors.Is(err, qr.ErrNoCode) {
			h.Log.Info("qr decode failed", zap.Error(err))
			alert.WriteJSON(w, http.StatusBadRequest, alert.New(alert.Warning, "Could not read the code", MsgNoCode))
			return "", false
		}
		h.ErrLog.LogServerError(w, r, "qr decode failed", err, "Could not read the code")
		return "", false
	}
	return code, true
}
