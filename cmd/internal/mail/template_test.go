package mail

import (
	"strings"
	"testing"
	"time"
)

func TestVerificationEmail(t *testing.T) {
	msg, err := VerificationEmail("a@example.com", "042917", 5*time.Minute)
	if err != nil {
		t.Fatalf("VerificationEmail: %v", err)
	}
	if msg.To != "a@example.com" || msg.Subject != "Verification Email" {
		t.Fatalf("unexpected headers: %+v", msg)
	}
	for _, want := range []string{"042917", "expires in 5 minutes", "Secure Auth - Email Verification"} {
		if !strings.Contains(msg.HTML, want) {
			t.Fatalf("body missing %q", want)
		}
	}
}

func TestVerificationEmail_EscapesCode(t *testing.T) {
	msg, err := VerificationEmail("a@example.com", "<b>1</b>", time.Minute)
	if err != nil {
		t.Fatalf("VerificationEmail: %v", err)
	}
	if strings.Contains(msg.HTML, "<b>1</b>") {
		t.Fatalf("code must be HTML-escaped")
	}
}

func TestVerificationEmail_MinimumOneMinute(t *testing.T) {
	msg, err := VerificationEmail("a@example.com", "123456", 10*time.Second)
	if err != nil {
		t.Fatalf("VerificationEmail: %v", err)
	}
	if !strings.Contains(msg.HTML, "expires in 1 minutes") {
		t.Fatalf("expected 1 minute floor")
	}
}
