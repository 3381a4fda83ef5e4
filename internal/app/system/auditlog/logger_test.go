package auditlog_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/tellevo/internal/app/store/audit"
	"github.com/dalemusser/tellevo/internal/app/system/auditlog"
	"github.com/dalemusser/tellevo/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_NilLogger(t *testing.T) {
	var logger *auditlog.Logger
	ctx := context.Background()

	logger.Log(ctx, audit.Event{EventType: "test"})
	logger.LoginSuccess(ctx, primitive.NewObjectID(), "a@example.com", "sid")
	logger.JourneyJoined(ctx, "a@example.com", "j1")
}

func TestLogger_Destinations(t *testing.T) {
	tests := []struct {
		name    string
		setting string
		wantDB  int
		wantLog int
	}{
		{"all", auditlog.All, 1, 1},
		{"db", auditlog.DB, 1, 0},
		{"log", auditlog.Log, 0, 1},
		{"off", auditlog.Off, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.SetupTestDB(t)
			store := audit.New(db)
			core, logs := observer.New(zap.InfoLevel)
			logger := auditlog.New(store, zap.New(core), auditlog.Config{Auth: tt.setting, Journeys: tt.setting})

			ctx, cancel := testutil.TestContext()
			defer cancel()

			logger.JourneyJoined(ctx, "a@example.com", "j1")

			events, err := store.GetByEmail(ctx, "a@example.com", 10)
			if err != nil {
				t.Fatalf("GetByEmail failed: %v", err)
			}
			if len(events) != tt.wantDB {
				t.Errorf("db events: got %d, want %d", len(events), tt.wantDB)
			}
			if logs.Len() != tt.wantLog {
				t.Errorf("log entries: got %d, want %d", logs.Len(), tt.wantLog)
			}
		})
	}
}

func TestLogger_ClientFromContext(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Auth: auditlog.DB})

	var ctx context.Context
	h := auditlog.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx = r.Context()
	}))
	req := httptest.NewRequest("POST", "/api/auth/login", nil)
	req.RemoteAddr = "192.0.2.10:4000"
	req.Header.Set("User-Agent", "TeLlevoTest/1.0")
	h.ServeHTTP(httptest.NewRecorder(), req)

	logger.LoginFailed(ctx, audit.EventLoginFailedWrongPass, "a@example.com", "wrong password")
	logger.PasswordResetRequested(ctx, "a@example.com", errors.New("no such user"))

	qctx, cancel := testutil.TestContext()
	defer cancel()
	events, err := store.GetByEmail(qctx, "a@example.com", 10)
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	for _, e := range events {
		if e.IP != "192.0.2.10" || e.UserAgent != "TeLlevoTest/1.0" {
			t.Errorf("client: got %q / %q", e.IP, e.UserAgent)
		}
		if e.Success {
			t.Errorf("%s should be a failure", e.EventType)
		}
	}
}
