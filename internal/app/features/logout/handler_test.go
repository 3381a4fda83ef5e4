package logout_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	uierrors "github.com/dalemusser/tellevo/internal/app/features/errors"
	"github.com/dalemusser/tellevo/internal/app/features/logout"
	"github.com/dalemusser/tellevo/internal/app/system/auth"
	"github.com/dalemusser/tellevo/internal/testutil"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*logout.Handler, *testutil.AuthStack) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	stack := testutil.NewAuthStack(t, db)
	logger := zap.NewNop()
	return logout.NewHandler(stack.Session, uierrors.NewErrorLogger(logger), logger), stack
}

func signedIn(t *testing.T, sess *auth.Session, token string) bool {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	sub, err := sess.AuthState(ctx, token)
	if err != nil {
		t.Fatalf("AuthState: %v", err)
	}
	defer sub.Cancel()
	select {
	case v := <-sub.Updates():
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("no auth state")
	}
	return false
}

func TestServeLogout_ClosesSession(t *testing.T) {
	h, stack := newTestHandler(t)
	res := stack.SignUp(t, "Ana", "ana@example.com", "secret123")

	if !signedIn(t, stack.Session, res.Token) {
		t.Fatal("expected signed in before logout")
	}

	req := testutil.NewJSONRequest(http.MethodPost, "/api/auth/logout", "")
	req.Header.Set("Authorization", "Bearer "+res.Token)
	rec := testutil.NewRecorder()
	h.ServeLogout(rec, req)
	rec.AssertStatus(t, http.StatusNoContent)

	if signedIn(t, stack.Session, res.Token) {
		t.Error("expected signed out after logout")
	}
}

func TestServeLogout_StaleTokenSucceeds(t *testing.T) {
	h, _ := newTestHandler(t)

	req := testutil.NewJSONRequest(http.MethodPost, "/api/auth/logout", "")
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := testutil.NewRecorder()
	h.ServeLogout(rec, req)
	rec.AssertStatus(t, http.StatusNoContent)
}

func TestServeLogout_BrowserRedirectsAndClearsCookie(t *testing.T) {
	h, stack := newTestHandler(t)
	res := stack.SignUp(t, "Ana", "ana@example.com", "secret123")

	// Get a real cookie first.
	seed := httptest.NewRecorder()
	if err := stack.Session.Cookies().Save(seed, httptest.NewRequest(http.MethodGet, "/", nil), res.Token, res.Email); err != nil {
		t.Fatalf("Save cookie: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/logout", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range seed.Result().Cookies() {
		req.AddCookie(c)
	}
	rec := testutil.NewRecorder()
	h.ServeLogout(rec, req)
	rec.AssertRedirect(t, "/login")

	cleared := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.DefaultCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("expected session cookie to be expired")
	}
	if signedIn(t, stack.Session, res.Token) {
		t.Error("cookie token should be signed out")
	}
}
