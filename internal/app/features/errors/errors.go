// internal/app/features/errors/errors.go
package errors

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/dalemusser/tellevo/internal/app/policy/journeypolicy"
	"github.com/dalemusser/tellevo/internal/app/system/alert"
	"github.com/dalemusser/tellevo/internal/app/system/auth"
	"github.com/dalemusser/tellevo/internal/app/system/identity"
	"go.uber.org/zap"
)

// ErrorLogger logs handler failures and answers with the JSON alert envelope.
type ErrorLogger struct {
	log *zap.Logger
}

// NewErrorLogger constructs an ErrorLogger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{log: logger}
}

func (e *ErrorLogger) fields(r *http.Request, err error) []zap.Field {
	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	}
	if u, ok := auth.CurrentUser(r); ok {
		fields = append(fields, zap.String("user", u.Email))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	return fields
}

// LogServerError logs msg at error level and replies 500.
func (e *ErrorLogger) LogServerError(w http.ResponseWriter, r *http.Request, msg string, err error, title string) {
	e.log.Error(msg, e.fields(r, err)...)
	alert.WriteJSON(w, http.StatusInternalServerError, alert.FromError(title, err))
}

// LogBadRequest logs msg at warn level and replies 400 with userMsg.
func (e *ErrorLogger) LogBadRequest(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg string) {
	e.log.Warn(msg, e.fields(r, err)...)
	alert.WriteJSON(w, http.StatusBadRequest, alert.New(alert.Warning, "Check the form", userMsg))
}

// LogForbidden logs msg and replies 403 with userMsg.
func (e *ErrorLogger) LogForbidden(w http.ResponseWriter, r *http.Request, msg string, userMsg string) {
	e.log.Warn(msg, e.fields(r, nil)...)
	alert.WriteJSON(w, http.StatusForbidden, alert.New(alert.Warning, "Action not allowed", userMsg))
}

// Respond picks the status for err and replies with its alert. Rule
// violations and identity failures are expected outcomes and are logged at
// info level; anything else is a server error.
func (e *ErrorLogger) Respond(w http.ResponseWriter, r *http.Request, title string, err error) {
	status := Status(err)
	switch {
	case status >= http.StatusInternalServerError:
		e.log.Error(title, e.fields(r, err)...)
	default:
		e.log.Info(title, e.fields(r, err)...)
	}
	alert.WriteJSON(w, status, alert.FromError(title, err))
}

// Status maps err to an HTTP status.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case stderrors.Is(err, journeypolicy.ErrJourneyNotFound),
		stderrors.Is(err, journeypolicy.ErrCreatorNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, journeypolicy.ErrDriverConflict),
		stderrors.Is(err, journeypolicy.ErrCapacityExceeded):
		return http.StatusConflict
	case stderrors.Is(err, journeypolicy.ErrNotDriver):
		return http.StatusForbidden
	case stderrors.Is(err, auth.ErrNameRequired):
		return http.StatusBadRequest
	case stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}

	switch identity.Code(err) {
	case "":
	case identity.CodeWrongPassword, identity.CodeUserNotFound:
		return http.StatusUnauthorized
	case identity.CodeEmailInUse:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
