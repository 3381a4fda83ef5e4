// internal/app/features/pages/handler.go
package pages

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/dalemusser/tellevo/internal/app/system/auth"
	"go.uber.org/zap"
)

//go:embed templates/*.gohtml
var FS embed.FS

// Page names; each has a templates/<name>.gohtml defining "content".
const (
	PageLogin           = "login"
	PageRegister        = "register"
	PagePasswordRestore = "password_restore"
	PageJourneys        = "journeys"
	PageMap             = "map"
	PageMyJourneys      = "my_journeys"
	PageQRScanner       = "qr_scanner"
)

var allPages = []string{
	PageLogin,
	PageRegister,
	PagePasswordRestore,
	PageJourneys,
	PageMap,
	PageMyJourneys,
	PageQRScanner,
}

// Handler renders the HTML shells. The shells talk to the JSON API; no
// page carries server-side data beyond the signed-in user and flash text.
type Handler struct {
	pages map[string]*template.Template
	Log   *zap.Logger
}

// NewHandler parses every page against the shared layout.
func NewHandler(logger *zap.Logger) (*Handler, error) {
	h := &Handler{pages: make(map[string]*template.Template, len(allPages)), Log: logger}
	for _, name := range allPages {
		t, err := template.New(name).ParseFS(FS, "templates/layout.gohtml", "templates/"+name+".gohtml")
		if err != nil {
			return nil, fmt.Errorf("parse page %s: %w", name, err)
		}
		h.pages[name] = t
	}
	return h, nil
}

// PageData is what every page template receives.
type PageData struct {
	Title  string
	Active string
	User   *auth.SessionUser
	Email  string
	Return string
	Error  string
	Token  string
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, name string, data PageData) {
	t, ok := h.pages[name]
	if !ok {
		h.Log.Error("unknown page", zap.String("page", name))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if u, ok := auth.CurrentUser(r); ok {
		data.User = u
	}
	data.Active = name

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		h.Log.Error("page render failed", zap.String("page", name), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}
