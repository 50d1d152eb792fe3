package authapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/asifkhan2513/secure-auth/cmd/identity"
	"github.com/asifkhan2513/secure-auth/cmd/internal/auth/session"
)

const testCookieSecret = "cookie-secret-for-tests-0123456789abcdef"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubVerifier accepts "good:<id>" and maps a few fixed strings to errors.
type stubVerifier struct {
	seen []string
}

func (v *stubVerifier) Verify(raw string, now time.Time) (session.Claims, error) {
	v.seen = append(v.seen, raw)
	switch {
	case strings.HasPrefix(raw, "good:"):
		return session.Claims{SubjectID: strings.TrimPrefix(raw, "good:"), IssuedAt: now}, nil
	case raw == "expired":
		return session.Claims{}, session.ErrTokenExpired
	case raw == "garbage":
		return session.Claims{}, session.ErrTokenMalformed
	default:
		return session.Claims{}, session.ErrTokenSignature
	}
}

type stubUsers map[string]identity.User

func (u stubUsers) FindByID(_ context.Context, id string) (identity.User, error) {
	if id == "boom" {
		return identity.User{}, errors.New("store down")
	}
	user, ok := u[id]
	if !ok {
		return identity.User{}, identity.NotFoundError{Op: "test.FindByID"}
	}
	return user, nil
}

type countingRecorder struct {
	nopRecorder
	rejected map[string]int
}

func (c *countingRecorder) GateRejected(reason string) {
	if c.rejected == nil {
		c.rejected = map[string]int{}
	}
	c.rejected[reason]++
}

func newTestGate(t *testing.T, secret string) (*Gate, *stubVerifier, *countingRecorder) {
	t.Helper()
	tr, err := newTransport(Config{CookieSecret: secret})
	if err != nil {
		t.Fatalf("newTransport: %v", err)
	}
	v := &stubVerifier{}
	rec := &countingRecorder{}
	users := stubUsers{"u1": {ID: "u1", Name: "A"}, "u2": {ID: "u2", Name: "B"}}
	return newGate(discardLogger(), tr, v, users, rec, 1<<20, time.Now), v, rec
}

// echoPrincipal writes the subject it sees, or "anonymous".
func echoPrincipal(w http.ResponseWriter, r *http.Request) {
	switch p := PrincipalFromContext(r.Context()).(type) {
	case Authenticated:
		_, _ = io.WriteString(w, p.SubjectID)
	default:
		_, _ = io.WriteString(w, "anonymous")
	}
}

func serveGate(g *Gate, r *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	g.RequireAuth(http.HandlerFunc(echoPrincipal)).ServeHTTP(rr, r)
	return rr
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rr.Body.String())
	}
	if body.Success {
		t.Fatalf("error body has success=true")
	}
	return body.Error.Code
}

func TestGate_ExtractionOrder(t *testing.T) {
	g, v, _ := newTestGate(t, testCookieSecret)
	signer := g.transport.signer

	cases := []struct {
		name  string
		setup func(r *http.Request)
		want  string
	}{
		{
			name: "signed cookie wins over everything",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: signer.Sign("good:u1")})
				r.AddCookie(&http.Cookie{Name: MirrorCookieName, Value: "good:u2"})
				r.Header.Set("Authorization", "Bearer good:u2")
			},
			want: "u1",
		},
		{
			name: "token cookie before header",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: MirrorCookieName, Value: "good:u2"})
				r.Header.Set("Authorization", "Bearer good:u1")
			},
			want: "u2",
		},
		{
			name: "tampered signed cookie falls through",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "good:u1.bm90LWEtc2ln"})
				r.Header.Set("Authorization", "Bearer good:u2")
			},
			want: "u2",
		},
		{
			name: "bearer header",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "bearer good:u1")
			},
			want: "u1",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/profile", nil)
			tc.setup(r)
			rr := serveGate(g, r)
			if rr.Code != http.StatusOK {
				t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
			}
			if got := rr.Body.String(); got != tc.want {
				t.Fatalf("subject=%q want %q", got, tc.want)
			}
		})
	}

	if len(v.seen) != len(cases) {
		t.Fatalf("verifier called %d times, want %d", len(v.seen), len(cases))
	}
}

func TestGate_BodyTokenIsRestored(t *testing.T) {
	g, _, _ := newTestGate(t, "")

	r := httptest.NewRequest(http.MethodPost, "/profile", strings.NewReader(`{"token":"good:u1","note":"kept"}`))
	r.Header.Set("Content-Type", "application/json; charset=utf-8")

	var downstream string
	rr := httptest.NewRecorder()
	g.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		downstream = string(b)
		echoPrincipal(w, r)
	})).ServeHTTP(rr, r)

	if rr.Code != http.StatusOK || rr.Body.String() != "u1" {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if downstream != `{"token":"good:u1","note":"kept"}` {
		t.Fatalf("downstream body = %q", downstream)
	}
}

func TestGate_BodyIgnoredWithoutJSONContentType(t *testing.T) {
	g, _, _ := newTestGate(t, "")

	r := httptest.NewRequest(http.MethodPost, "/profile", strings.NewReader(`{"token":"good:u1"}`))
	r.Header.Set("Content-Type", "text/plain")
	rr := serveGate(g, r)
	if rr.Code != http.StatusUnauthorized || errorCode(t, rr) != "no_credential" {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestGate_UnsignedSessionCookieWithoutSecret(t *testing.T) {
	g, _, _ := newTestGate(t, "")

	r := httptest.NewRequest(http.MethodGet, "/profile", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "good:u2"})
	rr := serveGate(g, r)
	if rr.Code != http.StatusOK || rr.Body.String() != "u2" {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestGate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		token  string
		status int
		code   string
	}{
		{name: "none", token: "", status: http.StatusUnauthorized, code: "no_credential"},
		{name: "expired", token: "expired", status: http.StatusUnauthorized, code: "token_expired"},
		{name: "bad signature", token: "forged", status: http.StatusUnauthorized, code: "token_invalid"},
		{name: "malformed", token: "garbage", status: http.StatusUnauthorized, code: "token_malformed"},
		{name: "deleted user", token: "good:ghost", status: http.StatusUnauthorized, code: "stale_credential"},
		{name: "store failure", token: "good:boom", status: http.StatusInternalServerError, code: "server_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g, _, rec := newTestGate(t, "")
			called := false
			next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })

			r := httptest.NewRequest(http.MethodGet, "/profile", nil)
			if tc.token != "" {
				r.Header.Set("Authorization", "Bearer "+tc.token)
			}
			rr := httptest.NewRecorder()
			g.RequireAuth(next).ServeHTTP(rr, r)

			if called {
				t.Fatalf("next handler ran on rejection")
			}
			if rr.Code != tc.status {
				t.Fatalf("status=%d want %d", rr.Code, tc.status)
			}
			if got := errorCode(t, rr); got != tc.code {
				t.Fatalf("code=%q want %q", got, tc.code)
			}
			if tc.status == http.StatusUnauthorized && rec.rejected[tc.code] != 1 {
				t.Fatalf("rejection not recorded: %v", rec.rejected)
			}
		})
	}
}

func TestPrincipalFromContext_DefaultsToAnonymous(t *testing.T) {
	if _, ok := PrincipalFromContext(context.Background()).(Anonymous); !ok {
		t.Fatalf("expected Anonymous")
	}
	if _, ok := AuthenticatedFromContext(context.Background()); ok {
		t.Fatalf("expected no Authenticated principal")
	}

	ctx := WithPrincipal(context.Background(), Authenticated{SubjectID: "u1"})
	a, ok := AuthenticatedFromContext(ctx)
	if !ok || a.SubjectID != "u1" {
		t.Fatalf("got %+v ok=%v", a, ok)
	}
}
