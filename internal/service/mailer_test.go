package service_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/fardin04/pu-found-lost-hub/internal/domain"
	"github.com/fardin04/pu-found-lost-hub/internal/service"
)

func TestLogMailer_RedactsTokens(t *testing.T) {
	var buf bytes.Buffer
	m := &service.LogMailer{Logger: slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))}

	err := m.Send(context.Background(), domain.Message{
		To:      "a@campus.example",
		Subject: "Reset your password",
		Body:    "Choose a new password.\n\nhttp://lostfound.test/reset-password?token=eyJhbGciOi.secret.sig",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	out := buf.String()
	if strings.Contains(out, "eyJhbGciOi") {
		t.Errorf("log leaked the token: %s", out)
	}
	if !strings.Contains(out, "token=[redacted]") {
		t.Errorf("expected redacted token in log: %s", out)
	}
	if !strings.Contains(out, "Reset your password") {
		t.Errorf("expected subject in log: %s", out)
	}
}

func TestLogMailer_BodyOnlyAtDebug(t *testing.T) {
	var buf bytes.Buffer
	m := &service.LogMailer{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	if err := m.Send(context.Background(), domain.Message{To: "a@campus.example", Subject: "Hi", Body: "body text"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if strings.Contains(buf.String(), "body text") {
		t.Errorf("body logged at info level: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "mail sent") {
		t.Errorf("expected delivery line: %s", buf.String())
	}
}

func TestRedactTokens(t *testing.T) {
	got := service.RedactTokens("a?token=abc&x=1 b?token=def")
	if got != "a?token=[redacted]&x=1 b?token=[redacted]" {
		t.Errorf("RedactTokens = %q", got)
	}
}
