// internal/app/features/login/handler.go
package login

import (
	"net/http"
	"net/url"
	"strings"

	uierrors "github.com/dalemusser/tellevo/internal/app/features/errors"
	"github.com/dalemusser/tellevo/internal/app/features/shared"
	"github.com/dalemusser/tellevo/internal/app/store/audit"
	"github.com/dalemusser/tellevo/internal/app/system/alert"
	"github.com/dalemusser/tellevo/internal/app/system/auditlog"
	"github.com/dalemusser/tellevo/internal/app/system/auth"
	"github.com/dalemusser/tellevo/internal/app/system/errtranslate"
	"github.com/dalemusser/tellevo/internal/app/system/inputval"
	"github.com/dalemusser/tellevo/internal/app/system/ratelimit"
	"github.com/dalemusser/tellevo/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// DefaultLanding is where a browser goes after signing in without a return URL.
const DefaultLanding = "/home/map"

type Handler struct {
	Auth    *auth.Session
	Limiter *ratelimit.LoginLimiter // optional
	Audit   *auditlog.Logger
	ErrLog  *uierrors.ErrorLogger
	Log     *zap.Logger
}

func NewHandler(sess *auth.Session, limiter *ratelimit.LoginLimiter, audit *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Auth: sess, Limiter: limiter, Audit: audit, ErrLog: errLog, Log: logger}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,emailaddr" label:"Email"`
	Password string `json:"password" validate:"required" label:"Password"`
	Return   string `json:"return,omitempty"`
}

// HandleLogin handles POST /api/auth/login (JSON) and POST /login (form).
//
// JSON callers get the LoginResult; browsers get the session cookie and a
// 303 to the return URL. Failures answer with an alert envelope (JSON) or a
// redirect back to /login carrying the message.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	form := isForm(r)

	var in loginRequest
	if form {
		if err := r.ParseForm(); err != nil {
			h.ErrLog.LogBadRequest(w, r, "parse login form failed", err, errtranslate.MsgBadRequest)
			return
		}
		in = loginRequest{
			Email:    r.PostForm.Get("email"),
			Password: r.PostForm.Get("password"),
			Return:   r.PostForm.Get("return"),
		}
	} else if err := shared.DecodeJSON(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode login request failed", err, errtranslate.MsgBadRequest)
		return
	}

	fail := func(status int, a alert.Alert) {
		if form {
			redirectToLogin(w, r, in.Email, in.Return, a.Text)
			return
		}
		alert.WriteJSON(w, status, a)
	}

	if v := inputval.Validate(in); v.HasErrors() {
		fail(http.StatusBadRequest, alert.New(alert.Warning, "Check the form", v.First()))
		return
	}

	if h.Limiter != nil {
		if ok, reason := h.Limiter.Check(r, in.Email); !ok {
			h.Audit.LoginFailed(r.Context(), audit.EventLoginFailedRateLimit, in.Email, reason)
			h.Log.Warn("login rate limited", zap.String("ip", ratelimit.ClientIP(r)))
			w.Header().Set("Retry-After", "60")
			fail(http.StatusTooManyRequests, alert.New(alert.Warning, "Slow down", reason))
			return
		}
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "login")
	defer cancel()

	res, err := h.Auth.Login(ctx, in.Email, in.Password, auth.LoginMeta{
		IP:        ratelimit.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		status := uierrors.Status(err)
		if status >= http.StatusInternalServerError {
			h.ErrLog.Respond(w, r, "Could not sign in", err)
			return
		}
		fail(status, alert.FromError("Could not sign in", err))
		return
	}
	if h.Limiter != nil {
		h.Limiter.ResetEmail(in.Email)
	}

	if c := h.Auth.Cookies(); c != nil {
		if err := c.Save(w, r, res.Token, res.Email); err != nil {
			h.Log.Error("login: save cookie", zap.Error(err))
		}
	}

	if form {
		http.Redirect(w, r, SafeReturn(in.Return), http.StatusSeeOther)
		return
	}
	shared.WriteJSON(w, http.StatusOK, res)
}

// SafeReturn accepts only local absolute paths; anything else lands on
// DefaultLanding.
func SafeReturn(ret string) string {
	if ret == "" || !strings.HasPrefix(ret, "/") || strings.HasPrefix(ret, "//") || strings.HasPrefix(ret, "/\\") {
		return DefaultLanding
	}
	if u, err := url.Parse(ret); err != nil || u.Host != "" || u.Scheme != "" {
		return DefaultLanding
	}
	return ret
}

func isForm(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "application/x-www-form-urlencoded") || strings.HasPrefix(ct, "multipart/form-data")
}

func redirectToLogin(w http.ResponseWriter, r *http.Request, email, ret, msg string) {
	q := url.Values{}
	if email != "" {
		q.Set("email", email)
	}
	if ret != "" {
		q.Set("return", ret)
	}
	q.Set("error", msg)
	http.Redirect(w, r, "/login?"+q.Encode(), http.StatusSeeOther)
}
