package journeys_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	uierrors "github.com/dalemusser/tellevo/internal/app/features/errors"
	"github.com/dalemusser/tellevo/internal/app/features/journeys"
	journeystore "github.com/dalemusser/tellevo/internal/app/store/journeys"
	userstore "github.com/dalemusser/tellevo/internal/app/store/users"
	"github.com/dalemusser/tellevo/internal/app/system/alert"
	"github.com/dalemusser/tellevo/internal/app/system/errtranslate"
	"github.com/dalemusser/tellevo/internal/app/system/events"
	"github.com/dalemusser/tellevo/internal/app/system/qr"
	"github.com/dalemusser/tellevo/internal/app/system/wsstream"
	"github.com/dalemusser/tellevo/internal/testutil"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type env struct {
	h     *journeys.Handler
	store *journeystore.Store
	fx    *testutil.Fixtures
	pub   *recordingPublisher
}

func setup(t *testing.T) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	store := journeystore.New(db, userstore.New(db), logger, journeystore.Options{NotifyOnWrite: true})
	store.Feed().Start()
	t.Cleanup(store.Feed().Stop)

	pub := &recordingPublisher{}
	h := journeys.NewHandler(store, wsstream.New(wsstream.Config{}, logger), pub, nil, uierrors.NewErrorLogger(logger), logger)
	return &env{h: h, store: store, fx: testutil.NewFixtures(t, db), pub: pub}
}

func call(fn http.HandlerFunc, method, target, body, id string, user testutil.TestUser) *testutil.ResponseRecorder {
	req := testutil.NewAuthenticatedRequest(method, target, body, user)
	if id != "" {
		req = testutil.WithChiURLParam(req, "id", id)
	}
	rec := testutil.NewRecorder()
	fn(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *testutil.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func routeJSON(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf(`{"lat":%d.5,"lng":-%d.25}`, i%80, i%170)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func TestHandleCreate(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	e.fx.CreateUser(ctx, "Dana Driver", "dana@example.com")
	dana := testutil.Rider("dana@example.com")

	body := `{"car_registration":"<b>abc</b> 123","capacity":2,"points":` + routeJSON(23) + `}`
	rec := call(e.h.HandleCreate, http.MethodPost, "/api/journeys", body, "", dana)
	rec.AssertStatus(t, http.StatusCreated)

	got := decode[journeys.JourneyView](t, rec)
	if got.UID == "" || got.Driver != "dana@example.com" || got.CreatorName != "Dana Driver" {
		t.Errorf("journey: %+v", got.Journey)
	}
	if got.Plate != "ABC 123" {
		t.Errorf("plate: got %q", got.Plate)
	}
	if len(got.Points) != 5 {
		t.Errorf("points: got %d, want 5", len(got.Points))
	}
	if !got.IsDriver || got.IsPassenger || got.SeatsLeft != 2 {
		t.Errorf("view flags: driver=%v passenger=%v seats=%d", got.IsDriver, got.IsPassenger, got.SeatsLeft)
	}
	if got.CreatedAgo == "" {
		t.Error("expected a created_ago label")
	}
	if types := e.pub.types(); len(types) != 1 || types[0] != events.JourneyCreated {
		t.Errorf("events: %v", types)
	}
}

func TestHandleCreate_Invalid(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	e.fx.CreateUser(ctx, "Dana Driver", "dana@example.com")
	dana := testutil.Rider("dana@example.com")

	tests := []struct {
		name   string
		body   string
		status int
		text   string
	}{
		{"zero capacity", `{"car_registration":"ABC","capacity":0,"points":` + routeJSON(2) + `}`, http.StatusBadRequest, "Capacity must be at least 1."},
		{"no route", `{"car_registration":"ABC","capacity":2,"points":[]}`, http.StatusBadRequest, "Route must have at least 1 items."},
		{"blank plate", `{"car_registration":"  ","capacity":2,"points":` + routeJSON(2) + `}`, http.StatusBadRequest, "Car registration is required."},
		{"markup only plate", `{"car_registration":"<i></i>","capacity":2,"points":` + routeJSON(2) + `}`, http.StatusBadRequest, "Car registration is required."},
		{"latitude out of range", `{"car_registration":"ABC","capacity":2,"points":[{"lat":91,"lng":0}]}`, http.StatusBadRequest, "Latitude is out of range."},
		{"unknown field", `{"plate":"ABC"}`, http.StatusBadRequest, errtranslate.MsgBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := call(e.h.HandleCreate, http.MethodPost, "/api/journeys", tt.body, "", dana)
			rec.AssertStatus(t, tt.status)
			if got := decode[alert.Envelope](t, rec).Alert.Text; got != tt.text {
				t.Errorf("text: got %q, want %q", got, tt.text)
			}
		})
	}
	if types := e.pub.types(); len(types) != 0 {
		t.Errorf("no events expected, got %v", types)
	}
}

func TestHandleCreate_NoProfile(t *testing.T) {
	e := setup(t)
	body := `{"car_registration":"ABC","capacity":2,"points":` + routeJSON(3) + `}`
	rec := call(e.h.HandleCreate, http.MethodPost, "/api/journeys", body, "", testutil.Rider("ghost@example.com"))
	rec.AssertStatus(t, http.StatusNotFound)
	if got := decode[alert.Envelope](t, rec).Alert.Text; got != errtranslate.MsgNoCreator {
		t.Errorf("text: got %q", got)
	}
}

func TestJoinLeaveScenario(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	j := e.fx.CreateJourney(ctx, "dana@example.com", 2)

	join := func(email string) *testutil.ResponseRecorder {
		return call(e.h.HandleJoin, http.MethodPost, "/api/journeys/"+j.UID+"/join", "", j.UID, testutil.Rider(email))
	}

	join("a@example.com").AssertStatus(t, http.StatusOK)
	rec := join("b@example.com")
	rec.AssertStatus(t, http.StatusOK)
	if got := decode[journeys.JourneyView](t, rec); !got.IsPassenger || got.SeatsLeft != 0 {
		t.Errorf("after B joined: passenger=%v seats=%d", got.IsPassenger, got.SeatsLeft)
	}

	tests := []struct {
		name   string
		email  string
		status int
		title  string
	}{
		{"full", "c@example.com", http.StatusConflict, "Journey full"},
		{"driver", "dana@example.com", http.StatusConflict, "Action not allowed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := join(tt.email)
			rec.AssertStatus(t, tt.status)
			a := decode[alert.Envelope](t, rec).Alert
			if a.Title != tt.title || a.Level != alert.Warning {
				t.Errorf("alert: %+v", a)
			}
		})
	}

	rec = call(e.h.HandleLeave, http.MethodPost, "/api/journeys/"+j.UID+"/leave", "", j.UID, testutil.Rider("a@example.com"))
	rec.AssertStatus(t, http.StatusOK)
	got := decode[journeys.JourneyView](t, rec)
	if len(got.Passengers) != 1 || got.Passengers[0] != "b@example.com" {
		t.Errorf("passengers: got %v, want [b@example.com]", got.Passengers)
	}

	// Leave is idempotent.
	call(e.h.HandleLeave, http.MethodPost, "/api/journeys/"+j.UID+"/leave", "", j.UID, testutil.Rider("a@example.com")).
		AssertStatus(t, http.StatusOK)

	want := []string{events.JourneyJoined, events.JourneyJoined, events.JourneyLeft, events.JourneyLeft}
	if got := e.pub.types(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("events: got %v, want %v", got, want)
	}
}

func TestHandleJoin_NotFound(t *testing.T) {
	e := setup(t)
	rider := testutil.Rider("a@example.com")

	for _, id := range []string{"not-an-id", "0123456789abcdef01234567"} {
		rec := call(e.h.HandleJoin, http.MethodPost, "/api/journeys/"+id+"/join", "", id, rider)
		rec.AssertStatus(t, http.StatusNotFound)
		if a := decode[alert.Envelope](t, rec).Alert; a.Title != "Journey not found" {
			t.Errorf("%s: alert %+v", id, a)
		}
	}
}

func TestHandleDelete(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	j := e.fx.CreateJourney(ctx, "dana@example.com", 3, "a@example.com")

	del := func(email string) *testutil.ResponseRecorder {
		return call(e.h.HandleDelete, http.MethodDelete, "/api/journeys/"+j.UID, "", j.UID, testutil.Rider(email))
	}

	rec := del("a@example.com")
	rec.AssertStatus(t, http.StatusForbidden)
	if got := decode[alert.Envelope](t, rec).Alert.Text; got != errtranslate.MsgNotDriver {
		t.Errorf("text: got %q", got)
	}

	del("dana@example.com").AssertStatus(t, http.StatusNoContent)
	del("dana@example.com").AssertStatus(t, http.StatusNotFound)

	if got := e.pub.types(); len(got) != 1 || got[0] != events.JourneyDeleted {
		t.Errorf("events: %v", got)
	}
}

func TestServeList_AndMine(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	e.fx.CreateJourney(ctx, "dana@example.com", 3)
	e.fx.CreateJourney(ctx, "eve@example.com", 3, "dana@example.com")
	e.fx.CreateJourney(ctx, "eve@example.com", 3)
	dana := testutil.Rider("dana@example.com")

	all := decode[journeys.ListView](t, call(e.h.ServeList, http.MethodGet, "/api/journeys", "", "", dana))
	if all.Count != 3 {
		t.Errorf("all: got %d, want 3", all.Count)
	}

	rec := call(e.h.ServeMine, http.MethodGet, "/api/journeys/mine", "", "", dana)
	rec.AssertStatus(t, http.StatusOK)
	mine := decode[journeys.ListView](t, rec)
	if mine.Count != 2 {
		t.Fatalf("mine: got %d, want 2", mine.Count)
	}
	if !mine.Journeys[0].IsDriver || !mine.Journeys[1].IsPassenger {
		t.Errorf("mine flags: %+v / %+v", mine.Journeys[0], mine.Journeys[1])
	}
}

func TestServeRoute(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	j := e.fx.CreateJourney(ctx, "dana@example.com", 3)

	rec := call(e.h.ServeRoute, http.MethodGet, "/api/journeys/"+j.UID+"/route", "", j.UID, testutil.Rider("a@example.com"))
	rec.AssertStatus(t, http.StatusOK)
	got := decode[journeys.RouteView](t, rec)
	if len(got.Points) != 3 || len(got.Waypoints) != 3 {
		t.Fatalf("route: %+v", got)
	}
	if got.Waypoints[1] != j.Points[1] {
		t.Errorf("middle waypoint: got %+v, want %+v", got.Waypoints[1], j.Points[1])
	}
}

func TestServeQR_RoundTrip(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	j := e.fx.CreateJourney(ctx, "dana@example.com", 3)

	rec := call(e.h.ServeQR, http.MethodGet, "/api/journeys/"+j.UID+"/qr?size=256", "", j.UID, testutil.Rider("a@example.com"))
	rec.AssertStatus(t, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type: got %q", ct)
	}
	code, err := qr.DecodeBytes(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if code != j.UID {
		t.Errorf("code: got %q, want %q", code, j.UID)
	}
}

func TestServeLive_PushesChanges(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	j := e.fx.CreateJourney(ctx, "dana@example.com", 3)

	rider := testutil.Rider("a@example.com")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.h.ServeMineLive(w, testutil.WithUser(r, rider))
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	read := func() journeys.ListView {
		t.Helper()
		var v journeys.ListView
		_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		if err := conn.ReadJSON(&v); err != nil {
			t.Fatalf("read: %v", err)
		}
		return v
	}

	if first := read(); first.Count != 0 {
		t.Fatalf("first frame: got %d journeys, want 0", first.Count)
	}

	id, _ := journeystore.ParseID(j.UID)
	if err := e.store.Join(ctx, id, rider.Email); err != nil {
		t.Fatalf("Join: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if v := read(); v.Count == 1 && v.Journeys[0].IsPassenger {
			return
		}
	}
	t.Error("never received the joined journey")
}
