package shared

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Email string `json:"email"`
	}
	tests := []struct {
		name string
		ct   string
		in   string
		ok   bool
	}{
		{"valid", "application/json", `{"email":"a@b.co"}`, true},
		{"no content type", "", `{"email":"a@b.co"}`, true},
		{"unknown field", "application/json", `{"mail":"a@b.co"}`, false},
		{"trailing data", "application/json", `{"email":"a"}{"email":"b"}`, false},
		{"not json", "application/json", `email=a`, false},
		{"form content type", "application/x-www-form-urlencoded", `{"email":"a"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.in))
			if tt.ct != "" {
				req.Header.Set("Content-Type", tt.ct)
			}
			var got body
			err := DecodeJSON(httptest.NewRecorder(), req, &got)
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrBadJSON) {
				t.Errorf("expected ErrBadJSON, got %v", err)
			}
		})
	}
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]string{"uid": "x"})
	if rec.Code != http.StatusCreated {
		t.Errorf("status: %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		t.Errorf("content type: %q", rec.Header().Get("Content-Type"))
	}
	if strings.TrimSpace(rec.Body.String()) != `{"uid":"x"}` {
		t.Errorf("body: %s", rec.Body.String())
	}
}
