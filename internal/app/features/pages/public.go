// internal/app/features/pages/public.go
package pages

import (
	"net/http"

	"github.com/dalemusser/tellevo/internal/app/features/login"
)

// ServeLogin handles GET /login. Failed form logins come back here with
// ?error= and the email they tried.
func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ret := q.Get("return")
	if ret != "" {
		ret = login.SafeReturn(ret)
	}
	h.render(w, r, PageLogin, PageData{
		Title:  "Sign in",
		Email:  q.Get("email"),
		Return: ret,
		Error:  q.Get("error"),
	})
}

// ServeRegister handles GET /register.
func (h *Handler) ServeRegister(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, PageRegister, PageData{Title: "Create account"})
}

// ServePasswordRestore handles GET /password-restore. With ?token= (the
// emailed link) the page offers the new-password form instead.
func (h *Handler) ServePasswordRestore(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, PagePasswordRestore, PageData{
		Title: "Restore password",
		Token: r.URL.Query().Get("token"),
	})
}

// RedirectToLogin sends "/" and every unknown path to the login page.
func RedirectToLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
