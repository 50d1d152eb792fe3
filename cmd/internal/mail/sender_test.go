package mail

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/asifkhan2513/secure-auth/cmd/security/token"
)

func TestLogSender_DoesNotLogBody(t *testing.T) {
	var buf bytes.Buffer
	s := LogSender{Log: slog.New(slog.NewJSONHandler(&buf, nil))}

	err := s.Send(context.Background(), Message{To: "a@example.com", Subject: "Verification Email", HTML: "secret-code-123456"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "mail.send.skipped") || !strings.Contains(out, token.Fingerprint("a@example.com")) {
		t.Fatalf("unexpected log: %s", out)
	}
	if strings.Contains(out, "secret-code-123456") {
		t.Fatalf("body leaked into log: %s", out)
	}
	if strings.Contains(out, "a@example.com") {
		t.Fatalf("recipient address leaked into log: %s", out)
	}
}

func TestSenders_RejectEmptyRecipient(t *testing.T) {
	for name, s := range map[string]Sender{
		"log":  LogSender{},
		"smtp": NewSMTPSender(Config{Host: "localhost", Port: 25, From: "noreply@example.com"}),
	} {
		if err := s.Send(context.Background(), Message{To: "  "}); !errors.Is(err, ErrNoRecipient) {
			t.Fatalf("%s: expected ErrNoRecipient, got %v", name, err)
		}
	}
}

func TestSMTPSender_CanceledContext(t *testing.T) {
	s := NewSMTPSender(Config{Host: "localhost", Port: 25, From: "noreply@example.com"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Send(ctx, Message{To: "a@example.com"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSMTPSender_StalledSessionHonorsDeadline(t *testing.T) {
	s := NewSMTPSender(Config{Host: "localhost", Port: 25, From: "noreply@example.com"})
	release := make(chan struct{})
	defer close(release)
	s.send = func(...*gomail.Message) error {
		<-release
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := s.Send(ctx, Message{To: "a@example.com", Subject: "s", HTML: "<p>x</p>"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Send returned after %v", elapsed)
	}
}

func TestSMTPSender_BuildsMessage(t *testing.T) {
	s := NewSMTPSender(Config{Host: "localhost", Port: 25, From: "noreply@example.com"})
	var got *gomail.Message
	s.send = func(msgs ...*gomail.Message) error {
		got = msgs[0]
		return nil
	}

	if err := s.Send(context.Background(), Message{To: "a@example.com", Subject: "Verification Email", HTML: "<p>x</p>"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got == nil {
		t.Fatalf("nothing was sent")
	}
	if from := got.GetHeader("From"); len(from) != 1 || from[0] != "noreply@example.com" {
		t.Fatalf("From = %v", from)
	}
	if to := got.GetHeader("To"); len(to) != 1 || to[0] != "a@example.com" {
		t.Fatalf("To = %v", to)
	}
}

func TestSMTPSender_WrapsSendError(t *testing.T) {
	s := NewSMTPSender(Config{Host: "localhost", Port: 25, From: "noreply@example.com"})
	boom := errors.New("421 service not available")
	s.send = func(...*gomail.Message) error { return boom }

	if err := s.Send(context.Background(), Message{To: "a@example.com"}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped send error, got %v", err)
	}
}
