package mailer

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"go.uber.org/zap"
)

type captured struct {
	addr string
	from string
	to   []string
	msg  string
}

func newTestMailer(c *captured, fail error) *Mailer {
	m := New(Config{Host: "localhost", Port: 1025, From: "noreply@tellevo.app", FromName: "TeLlevo"}, zap.NewNop())
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		c.addr, c.from, c.to, c.msg = addr, from, to, string(msg)
		return fail
	}
	return m
}

func TestSend_PasswordReset(t *testing.T) {
	var c captured
	m := newTestMailer(&c, nil)

	e := BuildPasswordResetEmail("rider@example.com", PasswordResetData{
		SiteName:  "TeLlevo",
		ResetLink: "http://localhost:3000/password-restore?token=abc.def",
		ExpiresIn: "1 hour",
	})
	if err := m.Send(context.Background(), e); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if c.addr != "localhost:1025" {
		t.Errorf("addr: got %q", c.addr)
	}
	if len(c.to) != 1 || c.to[0] != "rider@example.com" {
		t.Errorf("to: got %v", c.to)
	}
	for _, want := range []string{
		"Subject: Reset your TeLlevo password",
		"multipart/alternative",
		"text/plain",
		"text/html",
		"token=abc.def",
	} {
		if !strings.Contains(c.msg, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestSend_PlainOnly(t *testing.T) {
	var c captured
	m := newTestMailer(&c, nil)

	if err := m.Send(context.Background(), Email{To: "a@example.com", Subject: "Hi", TextBody: "hello"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if strings.Contains(c.msg, "multipart") {
		t.Error("plain email should not be multipart")
	}
	if !strings.HasSuffix(c.msg, "hello") {
		t.Errorf("body not at end of message: %q", c.msg)
	}
}

func TestSend_Errors(t *testing.T) {
	var c captured
	boom := errors.New("relay down")
	m := newTestMailer(&c, boom)

	if err := m.Send(context.Background(), Email{Subject: "x", TextBody: "y"}); err == nil {
		t.Error("expected error for empty recipient")
	}
	if err := m.Send(context.Background(), Email{To: "a@example.com", TextBody: "y"}); !errors.Is(err, boom) {
		t.Errorf("expected wrapped relay error, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Send(ctx, Email{To: "a@example.com", TextBody: "y"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
