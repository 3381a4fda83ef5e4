// internal/app/system/alert/alert.go
package alert

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dalemusser/tellevo/internal/app/policy/journeypolicy"
	"github.com/dalemusser/tellevo/internal/app/system/errtranslate"
)

// Levels.
const (
	Success = "success"
	Info    = "info"
	Warning = "warning"
	Error   = "error"
)

// Alert is the presentation shape shared by every error and notice the API returns.
type Alert struct {
	Level string `json:"level"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// New builds an alert.
func New(level, title, text string) Alert {
	return Alert{Level: level, Title: title, Text: text}
}

// FromError builds an error alert with the translated message of err.
// Journey rule violations become warnings with their own titles.
func FromError(title string, err error) Alert {
	if a, ok := ruleAlert(err); ok {
		return a
	}
	return Alert{Level: Error, Title: title, Text: errtranslate.Message(err)}
}

// ForJoin builds the alert shown when joining a journey fails.
func ForJoin(err error) Alert {
	return FromError("Could not join the journey", err)
}

func ruleAlert(err error) (Alert, bool) {
	var title string
	switch {
	case errors.Is(err, journeypolicy.ErrDriverConflict), errors.Is(err, journeypolicy.ErrNotDriver):
		title = "Action not allowed"
	case errors.Is(err, journeypolicy.ErrCapacityExceeded):
		title = "Journey full"
	case errors.Is(err, journeypolicy.ErrJourneyNotFound):
		title = "Journey not found"
	default:
		return Alert{}, false
	}
	return Alert{Level: Warning, Title: title, Text: errtranslate.Message(err)}, true
}

// Envelope is the JSON body of every failed API call.
type Envelope struct {
	Alert Alert `json:"alert"`
}

// WriteJSON writes a as an error envelope with the given status.
func WriteJSON(w http.ResponseWriter, status int, a Alert) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Alert: a})
}
