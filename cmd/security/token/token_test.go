package token

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestParseSecret(t *testing.T) {
	long := strings.Repeat("k", MinSecretBytes)

	cases := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{name: "blank", raw: "   ", wantErr: ErrSecretMissing},
		{name: "short", raw: "too-short", wantErr: ErrSecretTooShort},
		{name: "trimmed to short", raw: "  " + long[:MinSecretBytes-1] + "  ", wantErr: ErrSecretTooShort},
		{name: "ok", raw: " " + long + " "},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseSecret(tc.raw, MinSecretBytes)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != long {
				t.Fatalf("secret not trimmed: %q", got)
			}
		})
	}
}

func TestHMACSHA256_DependsOnKey(t *testing.T) {
	key := []byte("k")
	a := HMACSHA256("value", key)
	if len(a) != 32 || !bytes.Equal(a, HMACSHA256("value", key)) {
		t.Fatalf("unexpected digest: %x", a)
	}
	if bytes.Equal(HMACSHA256("value", []byte("other")), a) {
		t.Fatalf("digest must depend on key")
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("ada@example.com")
	if len(a) != 12 || a != Fingerprint("ada@example.com") {
		t.Fatalf("unexpected fingerprint: %q", a)
	}
	if strings.Contains(a, "ada") || a == Fingerprint("bob@example.com") {
		t.Fatalf("fingerprint leaks or collides: %q", a)
	}
}

func TestSigner_RoundTrip(t *testing.T) {
	s := NewSigner([]byte(strings.Repeat("s", MinSecretBytes)))

	// JWTs contain dots; the signature must be split at the last one.
	value := "aaa.bbb.ccc"
	signed := s.Sign(value)

	got, ok := s.Unsign(signed)
	if !ok || got != value {
		t.Fatalf("Unsign = %q, %v", got, ok)
	}
}

func TestSigner_Rejects(t *testing.T) {
	s := NewSigner([]byte(strings.Repeat("s", MinSecretBytes)))
	other := NewSigner([]byte(strings.Repeat("o", MinSecretBytes)))
	signed := s.Sign("payload")

	for name, in := range map[string]string{
		"empty":          "",
		"unsigned":       "payload",
		"trailing dot":   "payload.",
		"leading dot":    ".abc",
		"bad base64":     "payload.!!!",
		"tampered value": "Payload" + signed[len("payload"):],
		"other key":      other.Sign("payload"),
	} {
		if v, ok := s.Unsign(in); ok {
			t.Fatalf("%s: expected rejection, got %q", name, v)
		}
	}
}
