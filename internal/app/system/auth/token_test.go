package auth_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/tellevo/internal/app/system/auth"
)

const testSecret = "test-token-secret-must-be-32-chars-long"

func TestTokens_IssueParse(t *testing.T) {
	tokens, err := auth.NewTokens(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}

	raw, err := tokens.Issue("sid-1", "uid-1", "rider@example.com", "Rider", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if strings.Count(raw, ".") != 2 {
		t.Errorf("expected a compact JWT, got %q", raw)
	}

	claims, err := tokens.Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.SessionID != "sid-1" || claims.Email != "rider@example.com" || claims.Name != "Rider" {
		t.Errorf("claims: got %+v", claims)
	}
}

func TestTokens_Rejects(t *testing.T) {
	tokens, _ := auth.NewTokens(testSecret, time.Hour)
	other, _ := auth.NewTokens(strings.Repeat("x", 40), time.Hour)

	foreign, _ := other.Issue("sid", "uid", "a@example.com", "A", time.Now().Add(time.Hour))
	expired, _ := tokens.Issue("sid", "uid", "a@example.com", "A", time.Now().Add(-time.Minute))

	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"garbage", "not.a.token"},
		{"wrong secret", foreign},
		{"expired", expired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tokens.Parse(tt.raw); !errors.Is(err, auth.ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestNewTokens_Validation(t *testing.T) {
	if _, err := auth.NewTokens("short", time.Hour); err == nil {
		t.Error("expected error for short secret")
	}
	if _, err := auth.NewTokens(testSecret, 0); err == nil {
		t.Error("expected error for zero ttl")
	}
}
