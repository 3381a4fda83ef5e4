// internal/app/system/errtranslate/errtranslate.go
package errtranslate

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dalemusser/tellevo/internal/app/policy/journeypolicy"
	"github.com/dalemusser/tellevo/internal/app/system/identity"
)

// User-facing messages.
const (
	MsgWrongPassword  = "The password is incorrect."
	MsgUserNotFound   = "There is no user registered with that email."
	MsgEmailInUse     = "That email is already in use by another account."
	MsgInvalidEmail   = "The email address is not valid."
	MsgWeakPassword   = "The password must be at least 8 characters."
	MsgInvalidReset   = "The reset link is invalid or has expired."
	MsgProviderOther  = "An unexpected error occurred, please try again."
	MsgBadRequest     = "The request was malformed."
	MsgNotFound       = "The requested resource was not found."
	MsgServerError    = "The server ran into an error, please try again later."
	MsgDriverConflict = "You are the driver of this journey."
	MsgJourneyFull    = "This journey has no seats left."
	MsgNoJourney      = "The journey does not exist."
	MsgNoCreator      = "Your user profile was not found."
	MsgNotDriver      = "Only the driver can do that."
	MsgUnknown        = "Unknown error."
)

// StatusError is a failure carrying an HTTP status.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return http.StatusText(e.Status)
}

// UserMessager is implemented by errors that already carry a user-facing message.
type UserMessager interface {
	UserMessage() string
}

var providerMessages = map[string]string{
	identity.CodeWrongPassword:     MsgWrongPassword,
	identity.CodeUserNotFound:      MsgUserNotFound,
	identity.CodeEmailInUse:        MsgEmailInUse,
	identity.CodeInvalidEmail:      MsgInvalidEmail,
	identity.CodeWeakPassword:      MsgWeakPassword,
	identity.CodeInvalidResetToken: MsgInvalidReset,
}

var ruleMessages = []struct {
	err error
	msg string
}{
	{journeypolicy.ErrDriverConflict, MsgDriverConflict},
	{journeypolicy.ErrCapacityExceeded, MsgJourneyFull},
	{journeypolicy.ErrJourneyNotFound, MsgNoJourney},
	{journeypolicy.ErrCreatorNotFound, MsgNoCreator},
	{journeypolicy.ErrNotDriver, MsgNotDriver},
}

// Message maps err to a message fit for an end user. It never panics and
// always returns a non-empty string.
func Message(err error) string {
	if err == nil {
		return MsgUnknown
	}

	var pe *identity.ProviderError
	if errors.As(err, &pe) {
		if msg, ok := providerMessages[pe.Code]; ok {
			return msg
		}
		return MsgProviderOther
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch se.Status {
		case http.StatusBadRequest:
			return MsgBadRequest
		case http.StatusNotFound:
			return MsgNotFound
		case http.StatusInternalServerError:
			return MsgServerError
		}
		text := se.Message
		if text == "" {
			text = http.StatusText(se.Status)
		}
		if text == "" {
			text = "status " + strconv.Itoa(se.Status)
		}
		return "Unexpected error: " + text
	}

	for _, r := range ruleMessages {
		if errors.Is(err, r.err) {
			return r.msg
		}
	}

	var um UserMessager
	if errors.As(err, &um) {
		if msg := um.UserMessage(); msg != "" {
			return msg
		}
	}

	return MsgUnknown
}
